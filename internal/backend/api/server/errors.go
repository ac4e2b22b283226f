package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
)

// Error is a typed API failure: a stable machine readable type string,
// the HTTP status, and a human readable detail. Handlers declare the
// errors an action can raise as values next to the handler.
type Error struct {
	Status int
	Type   string
	Detail string
}

func (e Error) Error() string {
	return e.Type + ": " + e.Detail
}

// WithDetail returns a copy with the detail replaced.
func (e Error) WithDetail(detail string) Error {
	e.Detail = detail

	return e
}

var (
	errInternal = Error{
		Status: http.StatusInternalServerError,
		Type:   "about:blank",
		Detail: "Internal server error",
	}
	errInvalidBody = Error{
		Status: http.StatusBadRequest,
		Type:   "core/request/invalid-body",
		Detail: "Request body could not be parsed",
	}
	errNotAuthenticated = Error{
		Status: http.StatusUnauthorized,
		Type:   "auth/authentication-failed",
		Detail: "Authentication failed",
	}
	errNotAuthorized = Error{
		Status: http.StatusForbidden,
		Type:   "auth/authorization-failed",
		Detail: "Authorization failed",
	}
	errRateLimited = Error{
		Status: http.StatusTooManyRequests,
		Type:   "rate-limit/exceeded",
		Detail: "Rate limit exceeded",
	}
)

// problemBody follows the RFC 7807 shape; the title is derived from the
// status and the trace id links the response to the recorded span.
type problemBody struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id"` //nolint:tagliatelle
}

// writeError renders err as a problem body. Errors that are not typed
// become a generic 500 so internals never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr Error
	if !errors.As(err, &apiErr) {
		apiErr = errInternal
	}

	if apiErr.Status >= http.StatusInternalServerError {
		s.lg.Errorf("%s %s error: %s", r.Method, r.URL.Path, err.Error())
	}

	body := problemBody{
		Type:    apiErr.Type,
		Title:   http.StatusText(apiErr.Status),
		Status:  apiErr.Status,
		Detail:  apiErr.Detail,
		TraceID: tracing.TraceID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.lg.Errorf("encode error body error: %s", err.Error())
	}
}

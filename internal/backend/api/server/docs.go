package server

import (
	"net/http"

	"github.com/ixdlabs/go-backend-template/docs"
)

// GET /api/docs and GET /api/openapi.yaml
//
// The docs page renders the embedded OpenAPI description with RapiDoc.

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, docs.FS, "index.html")
}

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, docs.FS, "openapi.yaml")
}

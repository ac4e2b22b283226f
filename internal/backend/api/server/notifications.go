package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/notificationservice"
)

// notificationItem is the wire shape of one feed entry: the delivery
// merged with its notification.
type notificationItem struct {
	ID        uuid.UUID               `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Data      map[string]interface{}  `json:"data"`
	ReadAt    *time.Time              `json:"read_at"`    //nolint:tagliatelle
	CreatedAt time.Time               `json:"created_at"` //nolint:tagliatelle
}

func newNotificationItem(it notificationrepo.Item) notificationItem {
	return notificationItem{
		ID:        it.Delivery.ID,
		Type:      it.Notification.Type,
		Title:     it.Delivery.Title,
		Body:      it.Delivery.Body,
		Data:      it.Notification.Data,
		ReadAt:    it.Delivery.ReadAt,
		CreatedAt: it.Delivery.CreatedAt,
	}
}

// GET /api/v1/notifications

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	page, err := s.notifs.List(r.Context(), actor.ID, notificationservice.ListRequest{
		OrderBy: r.URL.Query().Get("order_by"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	items := make([]notificationItem, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, newNotificationItem(it))
	}

	s.writeJSON(w, http.StatusOK, models.NewPage(page.Count, items))
}

// GET /api/v1/notifications/summary

type notificationSummaryOutput struct {
	UnreadCount int `json:"unread_count"` //nolint:tagliatelle
}

func (s *Server) handleNotificationSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	count, err := s.notifs.Summary(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, notificationSummaryOutput{UnreadCount: count})
}

// GET /api/v1/notifications/{id}

var errDetailNotificationNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "notifications/common/detail-notification/notification-not-found",
	Detail: "Notification not found",
}

func (s *Server) handleDetailNotification(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, errDetailNotificationNotFound)

		return
	}

	item, err := s.notifs.Detail(r.Context(), id, actor.ID)
	if err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			s.writeError(w, r, errDetailNotificationNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, newNotificationItem(item))
}

// POST /api/v1/notifications/{id}/read

var errReadNotificationNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "notifications/common/read-notification/notification-not-found",
	Detail: "Notification not found",
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, errReadNotificationNotFound)

		return
	}

	if _, err := s.notifs.MarkRead(r.Context(), id, actor.ID); err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			s.writeError(w, r, errReadNotificationNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeDetail(w, http.StatusOK, "Notification marked as read")
}

// POST /api/v1/notifications/read-all

type readAllOutput struct {
	ReadCount int `json:"read_count"` //nolint:tagliatelle
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	count, err := s.notifs.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, readAllOutput{ReadCount: count})
}

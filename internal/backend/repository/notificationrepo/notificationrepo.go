package notificationrepo

import (
	"errors"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
)

var ErrNotFound = errors.New("notification not found")

// Item is an in-app delivery joined with the notification it belongs to.
type Item struct {
	Delivery     models.NotificationDelivery
	Notification models.Notification
}

type ListRequest struct {
	UserID  uuid.UUID
	OrderBy string
	Limit   int
	Offset  int
}

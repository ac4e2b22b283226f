// Package notificationservice owns the notification feed of a user and
// the background fan-out of per-channel deliveries.
package notificationservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const (
	defaultListLimit = 10
	maxListLimit     = 20
)

type Repository interface {
	CreateNotification(ctx context.Context, n models.Notification, deliveries []models.NotificationDelivery) error
	GetNotification(ctx context.Context, id uuid.UUID) (models.Notification, error)
	GetPendingDeliveries(ctx context.Context, notificationID uuid.UUID) ([]models.NotificationDelivery, error)
	UpdateDeliveryResult(ctx context.Context, d models.NotificationDelivery) error
	ListItems(ctx context.Context, req notificationrepo.ListRequest) ([]notificationrepo.Item, int, error)
	GetItem(ctx context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}

type UserGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

type TaskClient interface {
	Submit(ctx context.Context, name string, payload interface{}) (tasks.Handle, error)
}

type ListRequest struct {
	OrderBy string
	Limit   int
	Offset  int
}

// DeliverySpec names one channel a notification should go out on.
type DeliverySpec struct {
	Channel   models.NotificationChannel
	Recipient string
}

type NotifyRequest struct {
	UserID     uuid.UUID
	Type       models.NotificationType
	Data       map[string]interface{}
	Title      string
	Body       string
	Deliveries []DeliverySpec
}

type NotificationService struct {
	repo   Repository
	users  UserGetter
	tc     TaskClient
	sender email.Sender
	lg     logger.Logger
}

func New(repo Repository, users UserGetter, tc TaskClient,
	sender email.Sender, lg logger.Logger,
) *NotificationService {
	return &NotificationService{
		repo:   repo,
		users:  users,
		tc:     tc,
		sender: sender,
		lg:     lg,
	}
}

// RegisterTasks mounts the welcome and delivery fan-out handlers onto
// the task registry.
func (ns *NotificationService) RegisterTasks(reg *tasks.Registry) {
	reg.Register(tasks.TaskWelcomeUser, ns.handleWelcomeUser)
	reg.Register(tasks.TaskSendNotification, ns.handleSendNotification)
}

// List returns the feed of a user: sent in-app deliveries joined with
// their notifications, newest first by default.
func (ns *NotificationService) List(ctx context.Context,
	userID uuid.UUID, req ListRequest,
) (models.Page[notificationrepo.Item], error) {
	if req.Limit <= 0 || req.Limit > maxListLimit {
		req.Limit = defaultListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	items, total, err := ns.repo.ListItems(ctx, notificationrepo.ListRequest{
		UserID:  userID,
		OrderBy: req.OrderBy,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return models.Page[notificationrepo.Item]{}, fmt.Errorf("list items error: %w", err)
	}

	return models.NewPage(total, items), nil
}

func (ns *NotificationService) Summary(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := ns.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("unread count error: %w", err)
	}

	return count, nil
}

func (ns *NotificationService) Detail(ctx context.Context,
	deliveryID, userID uuid.UUID,
) (notificationrepo.Item, error) {
	item, err := ns.repo.GetItem(ctx, deliveryID, userID)
	if err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			return notificationrepo.Item{}, err
		}

		return notificationrepo.Item{}, fmt.Errorf("get item error: %w", err)
	}

	return item, nil
}

func (ns *NotificationService) MarkRead(ctx context.Context,
	deliveryID, userID uuid.UUID,
) (notificationrepo.Item, error) {
	item, err := ns.repo.MarkRead(ctx, deliveryID, userID)
	if err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			return notificationrepo.Item{}, err
		}

		return notificationrepo.Item{}, fmt.Errorf("mark read error: %w", err)
	}

	return item, nil
}

func (ns *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := ns.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read error: %w", err)
	}

	return count, nil
}

// Notify stores the notification with its pending deliveries and hands
// the actual sending to the background fan-out task.
func (ns *NotificationService) Notify(ctx context.Context, req NotifyRequest) (models.Notification, error) {
	n := models.Notification{
		ID:     uuid.New(),
		UserID: req.UserID,
		Type:   req.Type,
		Data:   req.Data,
	}

	deliveries := make([]models.NotificationDelivery, 0, len(req.Deliveries))
	for _, spec := range req.Deliveries {
		deliveries = append(deliveries, models.NotificationDelivery{
			ID:             uuid.New(),
			NotificationID: n.ID,
			Channel:        spec.Channel,
			Recipient:      spec.Recipient,
			Title:          req.Title,
			Body:           req.Body,
			Status:         models.DeliveryPending,
		})
	}

	if err := ns.repo.CreateNotification(ctx, n, deliveries); err != nil {
		return models.Notification{}, fmt.Errorf("create notification error: %w", err)
	}

	payload := tasks.SendNotificationPayload{NotificationID: n.ID}
	if _, err := ns.tc.Submit(ctx, tasks.TaskSendNotification, payload); err != nil {
		return models.Notification{}, fmt.Errorf("submit send task error: %w", err)
	}

	return n, nil
}

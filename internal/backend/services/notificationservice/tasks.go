package notificationservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
)

type deliveryReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// handleWelcomeUser greets a freshly registered user: an in-app
// notification always, plus an email when the account has an address.
func (ns *NotificationService) handleWelcomeUser(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.WelcomePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload error: %w", err)
	}

	u, err := ns.users.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			ns.lg.Warnf("welcome task for missing user %s", p.UserID)

			return nil, nil
		}

		return nil, fmt.Errorf("get user error: %w", err)
	}

	content, err := email.WelcomeEmail(u.FirstName)
	if err != nil {
		return nil, err
	}

	specs := []DeliverySpec{{Channel: models.ChannelInApp, Recipient: u.Username}}
	if u.Email != nil {
		specs = append(specs, DeliverySpec{Channel: models.ChannelEmail, Recipient: *u.Email})
	}

	n, err := ns.Notify(ctx, NotifyRequest{
		UserID:     u.ID,
		Type:       models.NotificationWelcome,
		Data:       map[string]interface{}{"first_name": u.FirstName},
		Title:      content.Subject,
		Body:       content.Text,
		Deliveries: specs,
	})
	if err != nil {
		return nil, err
	}

	return []byte(n.ID.String()), nil
}

// handleSendNotification delivers every still pending delivery of the
// notification and records the per-delivery outcome. Failed deliveries
// stay failed; a retry of the task only picks up pending ones.
func (ns *NotificationService) handleSendNotification(ctx context.Context, payload []byte) ([]byte, error) {
	var p tasks.SendNotificationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload error: %w", err)
	}

	n, err := ns.repo.GetNotification(ctx, p.NotificationID)
	if err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			ns.lg.Warnf("send task for missing notification %s", p.NotificationID)

			return nil, nil
		}

		return nil, fmt.Errorf("get notification error: %w", err)
	}

	pending, err := ns.repo.GetPendingDeliveries(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("get pending deliveries error: %w", err)
	}

	var report deliveryReport

	for _, d := range pending {
		ref, deliverErr := ns.deliver(ctx, d)
		if deliverErr != nil {
			d.Status = models.DeliveryFailed
			d.FailureMessage = deliverErr.Error()
			report.Failed++

			ns.lg.Warnf("delivery %s via %s failed: %s", d.ID, d.Channel, deliverErr)
		} else {
			now := time.Now().UTC()
			d.Status = models.DeliverySent
			d.ProviderRef = ref
			d.SentAt = &now
			report.Sent++
		}

		if err := ns.repo.UpdateDeliveryResult(ctx, d); err != nil {
			return nil, fmt.Errorf("update delivery error: %w", err)
		}
	}

	if report.Failed > 0 {
		return nil, fmt.Errorf("notification %s: %d of %d deliveries failed",
			n.ID, report.Failed, len(pending))
	}

	result, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report error: %w", err)
	}

	return result, nil
}

func (ns *NotificationService) deliver(ctx context.Context, d models.NotificationDelivery) (string, error) {
	switch d.Channel {
	case models.ChannelInApp:
		// Stored deliveries are the in-app inbox, nothing to push.
		return "inapp", nil
	case models.ChannelEmail:
		content, err := email.NotificationEmail(d.Title, d.Body)
		if err != nil {
			return "", err
		}

		ref, err := ns.sender.Send(ctx, content.To(d.Recipient))
		if err != nil {
			return "", fmt.Errorf("send email error: %w", err)
		}

		return ref, nil
	default:
		return "", fmt.Errorf("channel %s is not supported", d.Channel)
	}
}

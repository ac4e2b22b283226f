package notificationservice_test

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/notificationservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type fakeRepo struct {
	notifications map[uuid.UUID]models.Notification
	deliveries    map[uuid.UUID]models.NotificationDelivery
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		notifications: make(map[uuid.UUID]models.Notification),
		deliveries:    make(map[uuid.UUID]models.NotificationDelivery),
	}
}

func (f *fakeRepo) CreateNotification(_ context.Context,
	n models.Notification, deliveries []models.NotificationDelivery,
) error {
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n

	for _, d := range deliveries {
		d.CreatedAt = time.Now()
		f.deliveries[d.ID] = d
	}

	return nil
}

func (f *fakeRepo) GetNotification(_ context.Context, id uuid.UUID) (models.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return models.Notification{}, notificationrepo.ErrNotFound
	}

	return n, nil
}

func (f *fakeRepo) GetPendingDeliveries(_ context.Context,
	notificationID uuid.UUID,
) ([]models.NotificationDelivery, error) {
	var pending []models.NotificationDelivery

	for _, d := range f.deliveries {
		if d.NotificationID == notificationID && d.Status == models.DeliveryPending {
			pending = append(pending, d)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Channel < pending[j].Channel
	})

	return pending, nil
}

func (f *fakeRepo) UpdateDeliveryResult(_ context.Context, d models.NotificationDelivery) error {
	if _, ok := f.deliveries[d.ID]; !ok {
		return notificationrepo.ErrNotFound
	}

	f.deliveries[d.ID] = d

	return nil
}

func (f *fakeRepo) visible(d models.NotificationDelivery, userID uuid.UUID) bool {
	n, ok := f.notifications[d.NotificationID]

	return ok && n.UserID == userID &&
		d.Channel == models.ChannelInApp && d.Status == models.DeliverySent
}

func (f *fakeRepo) ListItems(_ context.Context,
	req notificationrepo.ListRequest,
) ([]notificationrepo.Item, int, error) {
	var items []notificationrepo.Item

	for _, d := range f.deliveries {
		if f.visible(d, req.UserID) {
			items = append(items, notificationrepo.Item{
				Delivery:     d,
				Notification: f.notifications[d.NotificationID],
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Delivery.CreatedAt.After(items[j].Delivery.CreatedAt)
	})

	total := len(items)
	if req.Offset < len(items) {
		items = items[req.Offset:]
	} else {
		items = nil
	}

	if req.Limit > 0 && req.Limit < len(items) {
		items = items[:req.Limit]
	}

	return items, total, nil
}

func (f *fakeRepo) GetItem(_ context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error) {
	d, ok := f.deliveries[deliveryID]
	if !ok || !f.visible(d, userID) {
		return notificationrepo.Item{}, notificationrepo.ErrNotFound
	}

	return notificationrepo.Item{Delivery: d, Notification: f.notifications[d.NotificationID]}, nil
}

func (f *fakeRepo) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0

	for _, d := range f.deliveries {
		if f.visible(d, userID) && d.ReadAt == nil {
			count++
		}
	}

	return count, nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error) {
	d, ok := f.deliveries[deliveryID]
	if !ok || !f.visible(d, userID) {
		return notificationrepo.Item{}, notificationrepo.ErrNotFound
	}

	if d.ReadAt == nil {
		now := time.Now()
		d.ReadAt = &now
		f.deliveries[deliveryID] = d
	}

	return f.GetItem(ctx, deliveryID, userID)
}

func (f *fakeRepo) MarkAllRead(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0

	for id, d := range f.deliveries {
		if f.visible(d, userID) && d.ReadAt == nil {
			now := time.Now()
			d.ReadAt = &now
			f.deliveries[id] = d
			count++
		}
	}

	return count, nil
}

type fakeUsers struct {
	users map[uuid.UUID]models.User
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, userrepo.ErrNotFound
	}

	return u, nil
}

type recordingTasks struct {
	submitted []string
}

func (r *recordingTasks) Submit(_ context.Context, name string, _ interface{}) (tasks.Handle, error) {
	r.submitted = append(r.submitted, name)

	return tasks.Handle{ID: uuid.NewString()}, nil
}

type recordingSender struct {
	msgs []email.Message
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) (string, error) {
	r.msgs = append(r.msgs, msg)

	return "test-ref", nil
}

type fixture struct {
	repo   *fakeRepo
	users  *fakeUsers
	tc     *recordingTasks
	sender *recordingSender
	reg    *tasks.Registry
	svc    *notificationservice.NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	f := &fixture{
		repo:   newFakeRepo(),
		users:  &fakeUsers{users: make(map[uuid.UUID]models.User)},
		tc:     &recordingTasks{},
		sender: &recordingSender{},
		reg:    tasks.NewRegistry(),
	}
	f.svc = notificationservice.New(f.repo, f.users, f.tc, f.sender, lg)
	f.svc.RegisterTasks(f.reg)

	return f
}

func (f *fixture) addUser(username, emailAddr string) models.User {
	u := models.User{
		ID:        uuid.New(),
		Type:      models.UserTypeCustomer,
		Username:  username,
		FirstName: "Jane",
		LastName:  "Doe",
	}

	if emailAddr != "" {
		u.Email = &emailAddr
	}

	f.users.users[u.ID] = u

	return u
}

func (f *fixture) runTask(t *testing.T, name string, payload interface{}) []byte {
	t.Helper()

	h, ok := f.reg.Handler(name)
	require.True(t, ok)

	b, err := json.Marshal(payload)
	require.NoError(t, err)

	result, err := h(context.Background(), b)
	require.NoError(t, err)

	return result
}

func TestNotifySubmitsSendTask(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	n, err := f.svc.Notify(context.Background(), notificationservice.NotifyRequest{
		UserID: u.ID,
		Type:   models.NotificationCustom,
		Title:  "Hello",
		Body:   "Something happened.",
		Deliveries: []notificationservice.DeliverySpec{
			{Channel: models.ChannelInApp, Recipient: u.Username},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{tasks.TaskSendNotification}, f.tc.submitted)

	pending, err := f.repo.GetPendingDeliveries(context.Background(), n.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, models.DeliveryPending, pending[0].Status)
}

func TestWelcomeTaskInAppOnly(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	f.runTask(t, tasks.TaskWelcomeUser, tasks.WelcomePayload{UserID: u.ID})
	f.runSend(t, f.lastNotificationID(t))

	page, err := f.svc.List(context.Background(), u.ID, notificationservice.ListRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	require.Equal(t, models.NotificationWelcome, page.Items[0].Notification.Type)
	require.Empty(t, f.sender.msgs)
}

func TestWelcomeTaskWithEmail(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")

	f.runTask(t, tasks.TaskWelcomeUser, tasks.WelcomePayload{UserID: u.ID})
	f.runSend(t, f.lastNotificationID(t))

	require.Len(t, f.sender.msgs, 1)
	require.Equal(t, "jane@example.com", f.sender.msgs[0].To)

	count, err := f.svc.Summary(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWelcomeTaskMissingUser(t *testing.T) {
	f := newFixture(t)

	h, ok := f.reg.Handler(tasks.TaskWelcomeUser)
	require.True(t, ok)

	b, err := json.Marshal(tasks.WelcomePayload{UserID: uuid.New()})
	require.NoError(t, err)

	result, err := h(context.Background(), b)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Empty(t, f.repo.notifications)
}

func TestSendTaskMarksSMSFailed(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	n, err := f.svc.Notify(context.Background(), notificationservice.NotifyRequest{
		UserID: u.ID,
		Type:   models.NotificationCustom,
		Title:  "Hello",
		Body:   "Something happened.",
		Deliveries: []notificationservice.DeliverySpec{
			{Channel: models.ChannelInApp, Recipient: u.Username},
			{Channel: models.ChannelSMS, Recipient: "+15550100"},
		},
	})
	require.NoError(t, err)

	h, ok := f.reg.Handler(tasks.TaskSendNotification)
	require.True(t, ok)

	b, err := json.Marshal(tasks.SendNotificationPayload{NotificationID: n.ID})
	require.NoError(t, err)

	_, err = h(context.Background(), b)
	require.Error(t, err)

	byStatus := map[models.DeliveryStatus]int{}
	for _, d := range f.repo.deliveries {
		byStatus[d.Status]++
	}

	require.Equal(t, 1, byStatus[models.DeliverySent])
	require.Equal(t, 1, byStatus[models.DeliveryFailed])

	// A retry finds nothing pending and succeeds.
	_, err = h(context.Background(), b)
	require.NoError(t, err)
}

func TestSendTaskMissingNotification(t *testing.T) {
	f := newFixture(t)

	h, ok := f.reg.Handler(tasks.TaskSendNotification)
	require.True(t, ok)

	b, err := json.Marshal(tasks.SendNotificationPayload{NotificationID: uuid.New()})
	require.NoError(t, err)

	result, err := h(context.Background(), b)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	f.runTask(t, tasks.TaskWelcomeUser, tasks.WelcomePayload{UserID: u.ID})
	f.runSend(t, f.lastNotificationID(t))

	page, err := f.svc.List(context.Background(), u.ID, notificationservice.ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	id := page.Items[0].Delivery.ID

	item, err := f.svc.MarkRead(context.Background(), id, u.ID)
	require.NoError(t, err)
	require.NotNil(t, item.Delivery.ReadAt)

	first := *item.Delivery.ReadAt

	item, err = f.svc.MarkRead(context.Background(), id, u.ID)
	require.NoError(t, err)
	require.Equal(t, first, *item.Delivery.ReadAt)

	count, err := f.svc.Summary(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestMarkReadForeignUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")
	other := f.addUser("john", "")

	f.runTask(t, tasks.TaskWelcomeUser, tasks.WelcomePayload{UserID: u.ID})
	f.runSend(t, f.lastNotificationID(t))

	page, err := f.svc.List(context.Background(), u.ID, notificationservice.ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	_, err = f.svc.MarkRead(context.Background(), page.Items[0].Delivery.ID, other.ID)
	require.ErrorIs(t, err, notificationrepo.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	for i := 0; i < 3; i++ {
		n, err := f.svc.Notify(context.Background(), notificationservice.NotifyRequest{
			UserID: u.ID,
			Type:   models.NotificationCustom,
			Title:  "Hello",
			Body:   "Something happened.",
			Deliveries: []notificationservice.DeliverySpec{
				{Channel: models.ChannelInApp, Recipient: u.Username},
			},
		})
		require.NoError(t, err)
		f.runSend(t, n.ID)
	}

	count, err := f.svc.MarkAllRead(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = f.svc.MarkAllRead(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

// runSend drains the fan-out task for a notification.
func (f *fixture) runSend(t *testing.T, notificationID uuid.UUID) {
	t.Helper()

	f.runTask(t, tasks.TaskSendNotification, tasks.SendNotificationPayload{NotificationID: notificationID})
}

func (f *fixture) lastNotificationID(t *testing.T) uuid.UUID {
	t.Helper()

	require.NotEmpty(t, f.repo.notifications)

	var latest models.Notification
	for _, n := range f.repo.notifications {
		if n.CreatedAt.After(latest.CreatedAt) {
			latest = n
		}
	}

	return latest.ID
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
)

type NotificationsPostgresRepo struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) NotificationsPostgresRepo {
	return NotificationsPostgresRepo{db: db}
}

var itemCols = []string{
	"d.id", "d.notification_id", "d.channel", "d.recipient", "d.title", "d.body",
	"d.status", "d.failure_message", "d.provider_ref", "d.sent_at", "d.read_at",
	"d.created_at", "d.updated_at",
	"n.id", "n.user_id", "n.type", "n.data", "n.created_at", "n.updated_at",
}

// CreateNotification stores the notification together with its
// delivery records in one transaction.
func (nr NotificationsPostgresRepo) CreateNotification(ctx context.Context,
	n models.Notification, deliveries []models.NotificationDelivery,
) (err error) {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal data error: %w", err)
	}

	tx, err := nr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "create notification")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("notifications").
		Columns("id", "user_id", "type", "data").
		Values(n.ID, n.UserID, n.Type, dataJSON).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if len(deliveries) == 0 {
		return nil
	}

	ib := psql.Insert("notification_deliveries").
		Columns("id", "notification_id", "channel", "recipient", "title", "body",
			"status", "sent_at", "read_at")

	for _, d := range deliveries {
		ib = ib.Values(d.ID, d.NotificationID, d.Channel, d.Recipient, d.Title, d.Body,
			d.Status, d.SentAt, d.ReadAt)
	}

	query, args, err = ib.ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func (nr NotificationsPostgresRepo) GetNotification(ctx context.Context, id uuid.UUID) (n models.Notification, err error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "user_id", "type", "data", "created_at", "updated_at").
		From("notifications").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return models.Notification{}, fmt.Errorf("to sql error: %w", err)
	}

	var dataJSON []byte

	row := nr.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &dataJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return n, notificationrepo.ErrNotFound
		}

		return n, fmt.Errorf("scan error: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return n, fmt.Errorf("unmarshal data error: %w", err)
		}
	}

	return n, nil
}

func (nr NotificationsPostgresRepo) GetPendingDeliveries(ctx context.Context,
	notificationID uuid.UUID,
) ([]models.NotificationDelivery, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "notification_id", "channel", "recipient", "title", "body",
		"status", "failure_message", "provider_ref", "sent_at", "read_at", "created_at", "updated_at").
		From("notification_deliveries").
		Where(squirrel.Eq{
			"notification_id": notificationID,
			"status":          models.DeliveryPending,
		}).
		OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := nr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	deliveries := make([]models.NotificationDelivery, 0, 2)

	for rows.Next() {
		var d models.NotificationDelivery

		if err := rows.Scan(&d.ID, &d.NotificationID, &d.Channel, &d.Recipient, &d.Title, &d.Body,
			&d.Status, &d.FailureMessage, &d.ProviderRef, &d.SentAt, &d.ReadAt,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return deliveries, nil
}

// UpdateDeliveryResult records the outcome of a delivery attempt.
func (nr NotificationsPostgresRepo) UpdateDeliveryResult(ctx context.Context,
	d models.NotificationDelivery,
) (err error) {
	tx, err := nr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "update delivery")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("notification_deliveries").
		Set("status", d.Status).
		Set("failure_message", d.FailureMessage).
		Set("provider_ref", d.ProviderRef).
		Set("sent_at", d.SentAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": d.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return notificationrepo.ErrNotFound
	}

	return nil
}

// ListItems returns the in-app, sent deliveries of a user joined with
// their notifications, plus the total count for the page envelope.
func (nr NotificationsPostgresRepo) ListItems(ctx context.Context, //nolint:nonamedreturns
	req notificationrepo.ListRequest,
) (items []notificationrepo.Item, total int, err error) {
	tx, err := nr.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "list notifications")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("COUNT(*)").
		From("notification_deliveries d").
		Join("notifications n ON n.id = d.notification_id").
		Where(visibleWhere(req.UserID)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("to sql error: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("scan count error: %w", err)
	}

	orderBy := "d.created_at ASC"
	if req.OrderBy == "updated_at" {
		orderBy = "d.updated_at ASC"
	}

	sb := psql.Select(itemCols...).
		From("notification_deliveries d").
		Join("notifications n ON n.id = d.notification_id").
		Where(visibleWhere(req.UserID)).
		OrderBy(orderBy)

	if req.Offset != 0 {
		sb = sb.Offset(uint64(req.Offset))
	}

	if req.Limit != 0 {
		sb = sb.Limit(uint64(req.Limit))
	}

	query, args, err = sb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	items = make([]notificationrepo.Item, 0, req.Limit)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return items, total, nil
}

func (nr NotificationsPostgresRepo) GetItem(ctx context.Context,
	deliveryID, userID uuid.UUID,
) (notificationrepo.Item, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select(itemCols...).
		From("notification_deliveries d").
		Join("notifications n ON n.id = d.notification_id").
		Where(visibleWhere(userID)).
		Where(squirrel.Eq{"d.id": deliveryID}).ToSql()
	if err != nil {
		return notificationrepo.Item{}, fmt.Errorf("to sql error: %w", err)
	}

	item, err := scanItem(nr.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notificationrepo.Item{}, notificationrepo.ErrNotFound
		}

		return notificationrepo.Item{}, err
	}

	return item, nil
}

func (nr NotificationsPostgresRepo) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("COUNT(*)").
		From("notification_deliveries d").
		Join("notifications n ON n.id = d.notification_id").
		Where(visibleWhere(userID)).
		Where("d.read_at IS NULL").ToSql()
	if err != nil {
		return 0, fmt.Errorf("to sql error: %w", err)
	}

	var count int
	if err := nr.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count error: %w", err)
	}

	return count, nil
}

// MarkRead sets the read timestamp once and returns the up to date
// item. Reading an already read notification is a no-op.
func (nr NotificationsPostgresRepo) MarkRead(ctx context.Context,
	deliveryID, userID uuid.UUID,
) (item notificationrepo.Item, err error) {
	tx, err := nr.db.Begin(ctx)
	if err != nil {
		return notificationrepo.Item{}, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "mark read")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("notification_deliveries").
		Set("read_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"id":      deliveryID,
			"channel": models.ChannelInApp,
			"status":  models.DeliverySent,
		}).
		Where("read_at IS NULL").
		Where(squirrel.Expr("notification_id IN (SELECT id FROM notifications WHERE user_id = ?)", userID)).
		ToSql()
	if err != nil {
		return notificationrepo.Item{}, fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return notificationrepo.Item{}, fmt.Errorf("exec error: %w", err)
	}

	query, args, err = psql.Select(itemCols...).
		From("notification_deliveries d").
		Join("notifications n ON n.id = d.notification_id").
		Where(visibleWhere(userID)).
		Where(squirrel.Eq{"d.id": deliveryID}).ToSql()
	if err != nil {
		return notificationrepo.Item{}, fmt.Errorf("to sql error: %w", err)
	}

	item, err = scanItem(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notificationrepo.Item{}, notificationrepo.ErrNotFound
		}

		return notificationrepo.Item{}, err
	}

	return item, nil
}

// MarkAllRead sets the read timestamp on every unread in-app delivery
// of the user and reports how many were affected.
func (nr NotificationsPostgresRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (count int, err error) {
	tx, err := nr.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "mark all read")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("notification_deliveries").
		Set("read_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"channel": models.ChannelInApp,
			"status":  models.DeliverySent,
		}).
		Where("read_at IS NULL").
		Where(squirrel.Expr("notification_id IN (SELECT id FROM notifications WHERE user_id = ?)", userID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec error: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func visibleWhere(userID uuid.UUID) squirrel.Eq {
	return squirrel.Eq{
		"n.user_id": userID,
		"d.channel": models.ChannelInApp,
		"d.status":  models.DeliverySent,
	}
}

func scanItem(row pgx.Row) (notificationrepo.Item, error) {
	var (
		item     notificationrepo.Item
		dataJSON []byte
	)

	d := &item.Delivery
	n := &item.Notification

	if err := row.Scan(&d.ID, &d.NotificationID, &d.Channel, &d.Recipient, &d.Title, &d.Body,
		&d.Status, &d.FailureMessage, &d.ProviderRef, &d.SentAt, &d.ReadAt,
		&d.CreatedAt, &d.UpdatedAt,
		&n.ID, &n.UserID, &n.Type, &dataJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, pgx.ErrNoRows
		}

		return item, fmt.Errorf("scan error: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return item, fmt.Errorf("unmarshal data error: %w", err)
		}
	}

	return item, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
)

type AuditPostgresRepo struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) AuditPostgresRepo {
	return AuditPostgresRepo{db: db}
}

func (ar AuditPostgresRepo) CreateLog(ctx context.Context, l models.AuditLog) (err error) {
	oldJSON, err := marshalNullable(l.OldValue)
	if err != nil {
		return err
	}

	newJSON, err := marshalNullable(l.NewValue)
	if err != nil {
		return err
	}

	changedJSON, err := marshalNullable(l.ChangedValue)
	if err != nil {
		return err
	}

	tx, err := ar.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "create audit log")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("audit_logs").
		Columns("id", "actor_id", "actor_type", "action", "resource_type", "resource_id",
			"old_value", "new_value", "changed_value", "trace_id",
			"request_ip_address", "request_user_agent", "request_method", "request_url").
		Values(l.ID, l.ActorID, l.ActorType, l.Action, l.ResourceType, l.ResourceID,
			oldJSON, newJSON, changedJSON, l.TraceID,
			l.IPAddress, l.UserAgent, l.Method, l.URL).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func marshalNullable(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal value error: %w", err)
	}

	return b, nil
}

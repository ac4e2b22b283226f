package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/preferencerepo"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
)

type PreferencesPostgresRepo struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) PreferencesPostgresRepo {
	return PreferencesPostgresRepo{db: db}
}

func (pr PreferencesPostgresRepo) ListPreferences(ctx context.Context) ([]models.Preference, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "key", "value", "created_at", "updated_at").
		From("preferences").
		OrderBy("key ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := pr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	prefs := make([]models.Preference, 0, 10) //nolint:gomnd

	for rows.Next() {
		var p models.Preference

		if err := rows.Scan(&p.ID, &p.Key, &p.Value, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		prefs = append(prefs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return prefs, nil
}

func (pr PreferencesPostgresRepo) GetPreference(ctx context.Context, key string) (p models.Preference, err error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "key", "value", "created_at", "updated_at").
		From("preferences").
		Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return models.Preference{}, fmt.Errorf("to sql error: %w", err)
	}

	row := pr.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&p.ID, &p.Key, &p.Value, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, preferencerepo.ErrNotFound
		}

		return p, fmt.Errorf("scan error: %w", err)
	}

	return p, nil
}

// SetPreference inserts the key or updates its value when it already
// exists, returning the stored row.
func (pr PreferencesPostgresRepo) SetPreference(ctx context.Context, key, value string) (p models.Preference, err error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return models.Preference{}, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "set preference")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("preferences").
		Columns("id", "key", "value").
		Values(uuid.New(), key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		Suffix("RETURNING id, key, value, created_at, updated_at").ToSql()
	if err != nil {
		return models.Preference{}, fmt.Errorf("to sql error: %w", err)
	}

	row := tx.QueryRow(ctx, query, args...)
	if err := row.Scan(&p.ID, &p.Key, &p.Value, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, fmt.Errorf("scan error: %w", err)
	}

	return p, nil
}

func (pr PreferencesPostgresRepo) DeletePreference(ctx context.Context, key string) (err error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "delete preference")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Delete("preferences").
		Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return preferencerepo.ErrNotFound
	}

	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
)

const uniqueViolationCode = "23505"

var userCols = []string{
	"id", "type", "username", "email", "first_name", "last_name",
	"password_hash", "password_set_at", "joined_at", "created_at", "updated_at",
}

var actionCols = []string{
	"id", "type", "state", "user_id", "data", "token_hash",
	"expires_at", "created_at", "updated_at",
}

type UsersPostgresRepo struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) UsersPostgresRepo {
	return UsersPostgresRepo{db: db}
}

func (ur UsersPostgresRepo) CreateUser(ctx context.Context, u models.User) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "create user")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("users").
		Columns("id", "type", "username", "email", "first_name", "last_name",
			"password_hash", "password_set_at", "joined_at").
		Values(u.ID, u.Type, u.Username, u.Email, u.FirstName, u.LastName,
			u.PasswordHash, u.PasswordSetAt, u.JoinedAt).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	_, err = tx.Exec(ctx, query, args...)
	if err != nil {
		if errU := uniqueErr(err); errU != nil {
			return errU
		}

		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func (ur UsersPostgresRepo) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return ur.getUser(ctx, squirrel.Eq{"id": id})
}

func (ur UsersPostgresRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return ur.getUser(ctx, squirrel.Eq{"username": username})
}

func (ur UsersPostgresRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return ur.getUser(ctx, squirrel.Eq{"email": email})
}

func (ur UsersPostgresRepo) getUser(ctx context.Context, where squirrel.Eq) (u models.User, err error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select(userCols...).
		From("users").
		Where(where).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("to sql error: %w", err)
	}

	row := ur.db.QueryRow(ctx, query, args...)

	if err := row.Scan(&u.ID, &u.Type, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.PasswordSetAt, &u.JoinedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, userrepo.ErrNotFound
		}

		return u, fmt.Errorf("scan error: %w", err)
	}

	return u, nil
}

// UpdateUser writes the mutable profile fields. Password changes go
// through UpdatePassword.
func (ur UsersPostgresRepo) UpdateUser(ctx context.Context, u models.User) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "update user")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("users").
		Set("email", u.Email).
		Set("first_name", u.FirstName).
		Set("last_name", u.LastName).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": u.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if errU := uniqueErr(err); errU != nil {
			return errU
		}

		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}

	return nil
}

func (ur UsersPostgresRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, setAt time.Time) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "update password")
	}()

	if err := updatePassword(ctx, tx, id, hash, setAt); err != nil {
		return err
	}

	return nil
}

func (ur UsersPostgresRepo) DeleteUser(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "delete user")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Delete("users").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}

	return nil
}

func (ur UsersPostgresRepo) ListUsers(ctx context.Context, //nolint:nonamedreturns
	req userrepo.ListUsersRequest,
) (users []models.User, total int, err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "list users")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	var where squirrel.Sqlizer
	if req.Search != "" {
		pattern := "%" + req.Search + "%"
		where = squirrel.Or{
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
		}
	}

	cb := psql.Select("COUNT(*)").From("users")
	if where != nil {
		cb = cb.Where(where)
	}

	query, args, err := cb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("to sql error: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("scan count error: %w", err)
	}

	orderBy := "created_at ASC"
	if req.OrderBy == "updated_at" {
		orderBy = "updated_at ASC"
	}

	sb := psql.Select(userCols...).
		From("users").
		OrderBy(orderBy)

	if where != nil {
		sb = sb.Where(where)
	}

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

	users = make([]models.User, 0, req.Limit)

	for rows.Next() {
		var u models.User

		if err := rows.Scan(&u.ID, &u.Type, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.PasswordHash, &u.PasswordSetAt, &u.JoinedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan error: %w", err)
		}

		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return users, total, nil
}

func (ur UsersPostgresRepo) CreateAction(ctx context.Context, a models.UserAction) (err error) {
	dataJSON, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("marshal data error: %w", err)
	}

	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "create action")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("user_actions").
		Columns("id", "type", "state", "user_id", "data", "token_hash", "expires_at").
		Values(a.ID, a.Type, a.State, a.UserID, dataJSON, a.TokenHash, a.ExpiresAt).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func (ur UsersPostgresRepo) GetAction(ctx context.Context, id uuid.UUID) (a models.UserAction, err error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select(actionCols...).
		From("user_actions").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return models.UserAction{}, fmt.Errorf("to sql error: %w", err)
	}

	var dataJSON []byte

	row := ur.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&a.ID, &a.Type, &a.State, &a.UserID, &dataJSON, &a.TokenHash,
		&a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, userrepo.ErrActionNotFound
		}

		return a, fmt.Errorf("scan error: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &a.Data); err != nil {
			return a, fmt.Errorf("unmarshal data error: %w", err)
		}
	}

	return a, nil
}

// ObsoletePendingActions invalidates previous pending actions of the
// same type, so that only the most recently issued token stays usable.
func (ur UsersPostgresRepo) ObsoletePendingActions(ctx context.Context,
	userID uuid.UUID, t models.UserActionType,
) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "obsolete actions")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("user_actions").
		Set("state", models.ActionStateObsolete).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"user_id": userID,
			"type":    t,
			"state":   models.ActionStatePending,
		}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func (ur UsersPostgresRepo) CompleteAction(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "complete action")
	}()

	if err := completeAction(ctx, tx, id); err != nil {
		return err
	}

	return nil
}

// CompleteActionWithEmail marks the action completed and sets the
// verified email on the user within one transaction.
func (ur UsersPostgresRepo) CompleteActionWithEmail(ctx context.Context,
	actionID, userID uuid.UUID, email string,
) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "complete action with email")
	}()

	if err := completeAction(ctx, tx, actionID); err != nil {
		return err
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("users").
		Set("email", email).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if errU := uniqueErr(err); errU != nil {
			return errU
		}

		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}

	return nil
}

// CompleteActionWithPassword marks the action completed and replaces
// the user password within one transaction.
func (ur UsersPostgresRepo) CompleteActionWithPassword(ctx context.Context,
	actionID, userID uuid.UUID, hash string, setAt time.Time,
) (err error) {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "complete action with password")
	}()

	if err := completeAction(ctx, tx, actionID); err != nil {
		return err
	}

	if err := updatePassword(ctx, tx, userID, hash, setAt); err != nil {
		return err
	}

	return nil
}

func completeAction(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("user_actions").
		Set("state", models.ActionStateCompleted).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return userrepo.ErrActionNotFound
	}

	return nil
}

func updatePassword(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string, setAt time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("users").
		Set("password_hash", hash).
		Set("password_set_at", setAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}

	return nil
}

func uniqueErr(err error) error {
	target := new(pgconn.PgError)
	if errors.As(err, &target) && target.Code == uniqueViolationCode {
		switch target.ConstraintName {
		case "users_username_key":
			return userrepo.ErrUsernameExists
		case "users_email_key":
			return userrepo.ErrEmailExists
		}
	}

	return nil
}

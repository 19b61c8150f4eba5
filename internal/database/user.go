package database

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// User is a provisioned subscriber. ExpireAtMs is mutated on every renewal
// and never decreases under normal operation; TrialStartedAtMs is stamped
// once when the trial period is granted.
type User struct {
	TelegramID       int64  `db:"tg_id"`
	ClientID         string `db:"client_id"`
	Email            string `db:"email"`
	ExpireAtMs       int64  `db:"expire_at_ms"`
	SubID            string `db:"sub_id"`
	ConnectionString string `db:"connection_string"`
	LoginAtMs        int64  `db:"login_at_ms"`
	TrialStartedAtMs *int64 `db:"trial_started_at_ms"`
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.TelegramID,
		&u.ClientID,
		&u.Email,
		&u.ExpireAtMs,
		&u.SubID,
		&u.ConnectionString,
		&u.LoginAtMs,
		&u.TrialStartedAtMs,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ur *UserRepository) FindByTelegramId(ctx context.Context, telegramID int64) (*User, error) {
	buildSelect := sq.Select("tg_id", "client_id", "email", "expire_at_ms", "sub_id", "connection_string", "login_at_ms", "trial_started_at_ms").
		From("users").
		Where(sq.Eq{"tg_id": telegramID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	u, err := scanUser(ur.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (ur *UserRepository) Create(ctx context.Context, user *User) error {
	buildInsert := sq.Insert("users").
		Columns("tg_id", "client_id", "email", "expire_at_ms", "sub_id", "connection_string", "login_at_ms", "trial_started_at_ms").
		Values(user.TelegramID, user.ClientID, user.Email, user.ExpireAtMs, user.SubID, user.ConnectionString, user.LoginAtMs, user.TrialStartedAtMs).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildInsert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := ur.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (ur *UserRepository) UpdateExpiry(ctx context.Context, telegramID int64, expireAtMs int64) error {
	buildUpdate := sq.Update("users").
		Set("expire_at_ms", expireAtMs).
		Where(sq.Eq{"tg_id": telegramID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildUpdate.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := ur.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to update user expiry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no user found with tg_id: %d", telegramID)
	}
	return nil
}

// FindByExpiryRange returns users whose expiry falls into (startMs, endMs],
// used by the renewal-reminder sweep.
func (ur *UserRepository) FindByExpiryRange(ctx context.Context, startMs, endMs int64) ([]User, error) {
	buildSelect := sq.Select("tg_id", "client_id", "email", "expire_at_ms", "sub_id", "connection_string", "login_at_ms", "trial_started_at_ms").
		From("users").
		Where(sq.And{
			sq.Gt{"expire_at_ms": startMs},
			sq.LtOrEq{"expire_at_ms": endMs},
		}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := ur.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over user rows: %w", err)
	}
	return users, nil
}

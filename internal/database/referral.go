package database

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Referral tracks who invited a user and how many bonus coins they hold.
// ReferrerTelegramID stays nil for users who never applied a code.
type Referral struct {
	TelegramID         int64  `db:"tg_id"`
	ReferrerTelegramID *int64 `db:"referrer_tg_id"`
	BonusBalance       int64  `db:"bonus_balance"`
}

// ReferredUser is a referral row joined with the referred user's
// subscription timestamps, consumed by the monthly accrual job.
type ReferredUser struct {
	ReferrerTelegramID int64
	TelegramID         int64
	ExpireAtMs         *int64
	TrialStartedAtMs   *int64
}

type ReferralRepository struct {
	pool *pgxpool.Pool
}

func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

func (rr *ReferralRepository) FindByTelegramId(ctx context.Context, telegramID int64) (*Referral, error) {
	buildSelect := sq.Select("tg_id", "referrer_tg_id", "bonus_balance").
		From("referrals").
		Where(sq.Eq{"tg_id": telegramID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var r Referral
	err = rr.pool.QueryRow(ctx, sqlStr, args...).Scan(&r.TelegramID, &r.ReferrerTelegramID, &r.BonusBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query referral: %w", err)
	}
	return &r, nil
}

// Create inserts a bare referral record with no referrer and a zero balance.
// Existing records are left untouched.
func (rr *ReferralRepository) Create(ctx context.Context, telegramID int64) error {
	buildInsert := sq.Insert("referrals").
		Columns("tg_id").
		Values(telegramID).
		Suffix("ON CONFLICT (tg_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildInsert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := rr.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to insert referral: %w", err)
	}
	return nil
}

// UpsertReferrer sets or replaces the referrer for a user.
func (rr *ReferralRepository) UpsertReferrer(ctx context.Context, telegramID, referrerID int64) error {
	buildInsert := sq.Insert("referrals").
		Columns("tg_id", "referrer_tg_id").
		Values(telegramID, referrerID).
		Suffix("ON CONFLICT (tg_id) DO UPDATE SET referrer_tg_id = EXCLUDED.referrer_tg_id").
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildInsert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := rr.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to upsert referrer: %w", err)
	}
	return nil
}

// AddToBalance atomically increments (or with a negative amount, decrements)
// the bonus balance.
func (rr *ReferralRepository) AddToBalance(ctx context.Context, telegramID int64, amount int64) error {
	buildUpdate := sq.Update("referrals").
		Set("bonus_balance", sq.Expr("bonus_balance + ?", amount)).
		Where(sq.Eq{"tg_id": telegramID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildUpdate.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := rr.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to update bonus balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no referral record found with tg_id: %d", telegramID)
	}
	return nil
}

func (rr *ReferralRepository) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	buildSelect := sq.Select("bonus_balance").
		From("referrals").
		Where(sq.Eq{"tg_id": telegramID}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select query: %w", err)
	}

	var balance int64
	err = rr.pool.QueryRow(ctx, sqlStr, args...).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query bonus balance: %w", err)
	}
	return balance, nil
}

// FindReferredUsers returns every referred user together with the referrer
// id and the referred user's subscription timestamps.
func (rr *ReferralRepository) FindReferredUsers(ctx context.Context) ([]ReferredUser, error) {
	buildSelect := sq.Select("r.referrer_tg_id", "r.tg_id", "u.expire_at_ms", "u.trial_started_at_ms").
		From("referrals r").
		LeftJoin("users u ON u.tg_id = r.tg_id").
		Where(sq.NotEq{"r.referrer_tg_id": nil}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := rr.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query referred users: %w", err)
	}
	defer rows.Close()

	var referred []ReferredUser
	for rows.Next() {
		var r ReferredUser
		if err := rows.Scan(&r.ReferrerTelegramID, &r.TelegramID, &r.ExpireAtMs, &r.TrialStartedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan referred user row: %w", err)
		}
		referred = append(referred, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over referred user rows: %w", err)
	}
	return referred, nil
}

// CountActiveByReferrer returns how many of the referrer's referred users
// currently hold an unexpired subscription.
func (rr *ReferralRepository) CountActiveByReferrer(ctx context.Context, referrerID int64, nowMs int64) (int, error) {
	buildSelect := sq.Select("COUNT(*)").
		From("referrals r").
		Join("users u ON u.tg_id = r.tg_id").
		Where(sq.And{
			sq.Eq{"r.referrer_tg_id": referrerID},
			sq.Gt{"u.expire_at_ms": nowMs},
		}).
		PlaceholderFormat(sq.Dollar)

	sqlStr, args, err := buildSelect.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := rr.pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active referred users: %w", err)
	}
	return count, nil
}

package referral

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/qerenny/nowmeow/internal/database"
	"github.com/qerenny/nowmeow/internal/subscription"
)

// Coin rewards of the referral program.
const (
	// PerUserMonthlyBonus is credited to a referrer each month for every
	// referred user who is active and past the trial grace.
	PerUserMonthlyBonus = 20
	// FirstUseBonus is credited to a user the first time they apply a
	// referral code.
	FirstUseBonus = 20
)

var (
	ErrSelfReferral       = errors.New("a user cannot refer themselves")
	ErrReciprocalReferral = errors.New("reciprocal referrals are not allowed")
	ErrUnknownReferrer    = errors.New("referrer is not registered")
)

type referralRepository interface {
	FindByTelegramId(ctx context.Context, telegramID int64) (*database.Referral, error)
	Create(ctx context.Context, telegramID int64) error
	UpsertReferrer(ctx context.Context, telegramID, referrerID int64) error
	AddToBalance(ctx context.Context, telegramID int64, amount int64) error
	GetBalance(ctx context.Context, telegramID int64) (int64, error)
	FindReferredUsers(ctx context.Context) ([]database.ReferredUser, error)
	CountActiveByReferrer(ctx context.Context, referrerID int64, nowMs int64) (int, error)
}

type Service struct {
	referrals referralRepository
	now       func() time.Time
}

func NewService(referrals referralRepository) *Service {
	return &Service{referrals: referrals, now: time.Now}
}

// RegisterUser makes sure a bare referral record exists for the user.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64) error {
	return s.referrals.Create(ctx, telegramID)
}

// EnsureReferralRecord validates and applies a referral code: the referrer
// must already be registered, self-referral is rejected, and so is the
// mirror of an existing referral (if B was referred by A, A cannot then be
// referred by B). Applying a code for the first time credits the first-use
// bonus; re-applying only switches the referrer.
func (s *Service) EnsureReferralRecord(ctx context.Context, telegramID, referrerID int64) error {
	if referrerID == telegramID {
		return ErrSelfReferral
	}

	referrer, err := s.referrals.FindByTelegramId(ctx, referrerID)
	if err != nil {
		return err
	}
	if referrer == nil {
		return ErrUnknownReferrer
	}
	if referrer.ReferrerTelegramID != nil && *referrer.ReferrerTelegramID == telegramID {
		return ErrReciprocalReferral
	}

	existing, err := s.referrals.FindByTelegramId(ctx, telegramID)
	if err != nil {
		return err
	}
	firstUse := existing == nil || existing.ReferrerTelegramID == nil

	if err := s.referrals.UpsertReferrer(ctx, telegramID, referrerID); err != nil {
		return err
	}

	if firstUse {
		if err := s.referrals.AddToBalance(ctx, telegramID, FirstUseBonus); err != nil {
			return err
		}
		slog.Info("referral code activated", "tgId", telegramID, "referrerId", referrerID)
	} else {
		slog.Info("referrer changed", "tgId", telegramID, "referrerId", referrerID)
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, telegramID int64) (int64, error) {
	return s.referrals.GetBalance(ctx, telegramID)
}

// ActiveReferredCount reports how many referred users currently hold an
// unexpired subscription, for the referral menu.
func (s *Service) ActiveReferredCount(ctx context.Context, referrerID int64) (int, error) {
	return s.referrals.CountActiveByReferrer(ctx, referrerID, s.now().UnixMilli())
}

// AccrueMonthlyBonuses credits every referrer for their bonus-eligible
// referred users and returns the total credited. A referred user is
// eligible iff they hold a future expiry and are past the trial grace
// (expiry minus trial start above three days), or never had a trial.
// Each run is a flat additive credit; the scheduler owns at-most-once per
// billing period.
func (s *Service) AccrueMonthlyBonuses(ctx context.Context, now time.Time) (int64, error) {
	referred, err := s.referrals.FindReferredUsers(ctx)
	if err != nil {
		return 0, err
	}

	nowMs := now.UnixMilli()
	graceMs := subscription.TrialGrace.Milliseconds()

	eligibleByReferrer := make(map[int64]int64)
	for _, r := range referred {
		if r.ExpireAtMs == nil {
			continue
		}
		if *r.ExpireAtMs <= nowMs {
			continue
		}
		if r.TrialStartedAtMs != nil && *r.ExpireAtMs-*r.TrialStartedAtMs <= graceMs {
			continue
		}
		eligibleByReferrer[r.ReferrerTelegramID]++
	}

	var totalCredited int64
	for referrerID, count := range eligibleByReferrer {
		bonus := count * PerUserMonthlyBonus
		if err := s.referrals.AddToBalance(ctx, referrerID, bonus); err != nil {
			slog.Error("failed to credit referrer", "referrerId", referrerID, "bonus", bonus, "error", err)
			continue
		}
		slog.Info("referrer credited", "referrerId", referrerID, "eligibleUsers", count, "bonus", bonus)
		totalCredited += bonus
	}

	slog.Info("monthly referral accrual finished", "totalCredited", totalCredited)
	return totalCredited, nil
}

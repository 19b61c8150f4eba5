package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/qerenny/nowmeow/internal/database"
	"github.com/qerenny/nowmeow/internal/panel"
	"github.com/qerenny/nowmeow/internal/period"
)

type userRepository interface {
	FindByTelegramId(ctx context.Context, telegramID int64) (*database.User, error)
	Create(ctx context.Context, user *database.User) error
	UpdateExpiry(ctx context.Context, telegramID int64, expireAtMs int64) error
}

type provisioner interface {
	CreateCredential(ctx context.Context, tgID int64, expireAtMs int64, email string) (*panel.Credential, error)
	UpdateCredential(ctx context.Context, clientID string, tgID int64, email, subID string, expireAtMs int64) error
}

// Outcome is the result of CreateOrRenew. Credential is set only when a new
// subscription was provisioned.
type Outcome struct {
	Created    bool
	ExpireAtMs int64
	Credential *panel.Credential
}

type Service struct {
	users userRepository
	panel provisioner
	now   func() time.Time
}

func NewService(users userRepository, p provisioner) *Service {
	return &Service{users: users, panel: p, now: time.Now}
}

// CreateOrRenew provisions a fresh credential for unknown users or extends
// the expiry of an existing one. For existing users the remote update runs
// first; the local record is written only after the panel confirms, so a
// remote failure leaves the stored expiry unchanged.
func (s *Service) CreateOrRenew(ctx context.Context, tgID int64, p period.Period, displayName string) (*Outcome, error) {
	user, err := s.users.FindByTelegramId(ctx, tgID)
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	now := s.now()
	if user == nil {
		return s.create(ctx, tgID, p, displayName, now)
	}

	// A trial is granted at most once, before any record exists.
	if p == period.Day3 {
		return nil, ErrAlreadySubscribed
	}
	return s.renew(ctx, user, p, now)
}

func (s *Service) create(ctx context.Context, tgID int64, p period.Period, displayName string, now time.Time) (*Outcome, error) {
	expireAtMs, err := period.ComputeExpiry(now, p)
	if err != nil {
		return nil, err
	}

	cred, err := s.panel.CreateCredential(ctx, tgID, expireAtMs, displayName)
	if err != nil {
		return nil, &ProvisioningError{Err: err}
	}

	user := &database.User{
		TelegramID:       tgID,
		ClientID:         cred.ClientID,
		Email:            cred.Email,
		ExpireAtMs:       expireAtMs,
		SubID:            cred.SubID,
		ConnectionString: cred.ConnectionString,
		LoginAtMs:        now.UnixMilli(),
	}
	if p == period.Day3 {
		trialStart := now.UnixMilli()
		user.TrialStartedAtMs = &trialStart
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The panel already holds the credential; flag for manual
		// reconciliation instead of rolling back.
		slog.Error("panel client created but local insert failed",
			"tgId", tgID, "clientId", cred.ClientID, "error", err)
		return nil, &StoreError{Err: err}
	}

	slog.Info("subscription created", "tgId", tgID, "period", string(p), "expireAtMs", expireAtMs)
	return &Outcome{Created: true, ExpireAtMs: expireAtMs, Credential: cred}, nil
}

func (s *Service) renew(ctx context.Context, user *database.User, p period.Period, now time.Time) (*Outcome, error) {
	newExpireMs, err := period.ExtendExpiry(user.ExpireAtMs, now, p)
	if err != nil {
		return nil, err
	}

	err = s.panel.UpdateCredential(ctx, user.ClientID, user.TelegramID, user.Email, user.SubID, newExpireMs)
	if err != nil {
		return nil, &RenewalError{Err: err}
	}

	if err := s.users.UpdateExpiry(ctx, user.TelegramID, newExpireMs); err != nil {
		// The panel already accepted the new expiry; flag for manual
		// reconciliation.
		slog.Error("panel expiry updated but local write failed",
			"tgId", user.TelegramID, "expireAtMs", newExpireMs, "error", err)
		return nil, &StoreError{Err: err}
	}

	slog.Info("subscription renewed", "tgId", user.TelegramID, "period", string(p), "expireAtMs", newExpireMs)
	return &Outcome{Created: false, ExpireAtMs: newExpireMs}, nil
}

// Status returns the derived subscription state for a user.
func (s *Service) Status(ctx context.Context, tgID int64) (Status, *database.User, error) {
	user, err := s.users.FindByTelegramId(ctx, tgID)
	if err != nil {
		return StatusAbsent, nil, &StoreError{Err: err}
	}
	return DeriveStatus(user, s.now()), user, nil
}

package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type balanceStore interface {
	GetBalance(ctx context.Context, telegramID int64) (int64, error)
	AddToBalance(ctx context.Context, telegramID int64, amount int64) error
}

// ReconciliationError means the provider confirmed a charge but the bonus
// debit did not land: the balance is overstated, not the customer's money.
// Logged for manual reconciliation, never unwinds the payment.
type ReconciliationError struct {
	TelegramID   int64
	BonusCharged int64
	Err          error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("bonus debit of %d for tg_id %d failed after confirmed payment: %v", e.BonusCharged, e.TelegramID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// Service owns checkout sessions and bonus accounting around them.
type Service struct {
	sessions       SessionStore
	balances       balanceStore
	minimumPayment int64
	now            func() time.Time
}

func NewService(sessions SessionStore, balances balanceStore, minimumPayment int64) *Service {
	return &Service{sessions: sessions, balances: balances, minimumPayment: minimumPayment, now: time.Now}
}

// Begin opens a fresh checkout for one plan, replacing any session the user
// abandoned earlier.
func (s *Service) Begin(ctx context.Context, telegramID int64, plan Plan) (*Session, error) {
	session := &Session{
		TelegramID:  telegramID,
		State:       StateChoosingMethod,
		Period:      plan.Period,
		Label:       plan.Label,
		PriceMinor:  plan.PriceMinor,
		CreatedAtMs: s.now().UnixMilli(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) Get(ctx context.Context, telegramID int64) (*Session, error) {
	return s.sessions.Get(ctx, telegramID)
}

func (s *Service) Save(ctx context.Context, session *Session) error {
	return s.sessions.Save(ctx, session)
}

// Abort drops the session on any exit path that does not finish the
// checkout.
func (s *Service) Abort(ctx context.Context, telegramID int64) error {
	return s.sessions.Delete(ctx, telegramID)
}

// ApplyBonus validates the requested coin spend against the live balance
// and moves the session to awaiting payment.
func (s *Service) ApplyBonus(ctx context.Context, session *Session, requestedBonus int64) (SplitResult, error) {
	balance, err := s.balances.GetBalance(ctx, session.TelegramID)
	if err != nil {
		return SplitResult{}, fmt.Errorf("failed to read bonus balance: %w", err)
	}

	split, err := Split(session.PriceMinor, balance, requestedBonus, s.minimumPayment)
	if err != nil {
		return SplitResult{}, err
	}

	session.BonusInput = split.BonusCharged
	session.State = StateAwaitingPayment
	if err := s.sessions.Save(ctx, session); err != nil {
		return SplitResult{}, err
	}
	return split, nil
}

// BonusHint returns the balance and the advisory maximum for the prompt.
func (s *Service) BonusHint(ctx context.Context, session *Session) (balance, maxSpendable int64, err error) {
	balance, err = s.balances.GetBalance(ctx, session.TelegramID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bonus balance: %w", err)
	}
	return balance, MaxSpendableBonus(session.PriceMinor, balance, s.minimumPayment), nil
}

// Settle runs after the provider confirmed the charge: debit the coins that
// discounted the invoice and close whatever session is left. The bonus
// amount comes from the invoice payload, not the session, so settle works
// even when the session expired while the invoice was still payable. A
// failed debit comes back as a ReconciliationError because the money has
// already moved.
func (s *Service) Settle(ctx context.Context, telegramID, bonusCharged int64) error {
	defer func() {
		if err := s.sessions.Delete(ctx, telegramID); err != nil {
			slog.Error("failed to delete settled payment session", "tgId", telegramID, "error", err)
		}
	}()

	if bonusCharged <= 0 {
		return nil
	}
	if err := s.balances.AddToBalance(ctx, telegramID, -bonusCharged); err != nil {
		return &ReconciliationError{TelegramID: telegramID, BonusCharged: bonusCharged, Err: err}
	}
	slog.Info("bonus coins debited", "tgId", telegramID, "amount", bonusCharged)
	return nil
}

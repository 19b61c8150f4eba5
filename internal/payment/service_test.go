package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qerenny/nowmeow/internal/period"
)

type sessionStoreMock struct {
	sessions map[int64]*Session
	saveErr  error
}

func newSessionStoreMock() *sessionStoreMock {
	return &sessionStoreMock{sessions: make(map[int64]*Session)}
}

func (m *sessionStoreMock) Get(ctx context.Context, telegramID int64) (*Session, error) {
	return m.sessions[telegramID], nil
}

func (m *sessionStoreMock) Save(ctx context.Context, session *Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[session.TelegramID] = session
	return nil
}

func (m *sessionStoreMock) Delete(ctx context.Context, telegramID int64) error {
	delete(m.sessions, telegramID)
	return nil
}

type balanceStoreMock struct {
	balance    int64
	getErr     error
	addErr     error
	addCalls   int
	lastAmount int64
}

func (m *balanceStoreMock) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	return m.balance, m.getErr
}

func (m *balanceStoreMock) AddToBalance(ctx context.Context, telegramID int64, amount int64) error {
	m.addCalls++
	m.lastAmount = amount
	if m.addErr != nil {
		return m.addErr
	}
	m.balance += amount
	return nil
}

func testPlan() Plan {
	plan, _ := PlanByPeriod(period.Month1)
	return plan
}

func newTestPaymentService(sessions *sessionStoreMock, balances *balanceStoreMock) *Service {
	svc := NewService(sessions, balances, 60)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestBeginReplacesAbandonedSession(t *testing.T) {
	sessions := newSessionStoreMock()
	sessions.sessions[42] = &Session{TelegramID: 42, State: StateAwaitingPayment, BonusInput: 10}
	svc := newTestPaymentService(sessions, &balanceStoreMock{})

	session, err := svc.Begin(context.Background(), 42, testPlan())
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if session.State != StateChoosingMethod {
		t.Fatalf("new session state = %s, want %s", session.State, StateChoosingMethod)
	}
	if session.BonusInput != 0 {
		t.Fatalf("new session must not inherit the old bonus input")
	}
	if sessions.sessions[42] != session {
		t.Fatalf("session was not persisted")
	}
}

func TestApplyBonusMovesSessionToAwaitingPayment(t *testing.T) {
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 200}
	svc := newTestPaymentService(sessions, balances)

	session, err := svc.Begin(context.Background(), 42, testPlan())
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	split, err := svc.ApplyBonus(context.Background(), session, 40)
	if err != nil {
		t.Fatalf("ApplyBonus returned error: %v", err)
	}
	if split.PayableMinor != 10900 {
		t.Fatalf("payable = %d, want 10900", split.PayableMinor)
	}
	if session.State != StateAwaitingPayment {
		t.Fatalf("session state = %s, want %s", session.State, StateAwaitingPayment)
	}
	if session.BonusInput != 40 {
		t.Fatalf("session bonus = %d, want 40", session.BonusInput)
	}
}

func TestApplyBonusRejectionsLeaveSessionState(t *testing.T) {
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 30}
	svc := newTestPaymentService(sessions, balances)

	session, _ := svc.Begin(context.Background(), 42, testPlan())
	session.State = StateEnteringBonus
	_ = svc.Save(context.Background(), session)

	_, err := svc.ApplyBonus(context.Background(), session, 40)
	if !errors.Is(err, ErrInsufficientBonus) {
		t.Fatalf("expected ErrInsufficientBonus, got %v", err)
	}

	_, err = svc.ApplyBonus(context.Background(), session, 30)
	if err != nil {
		t.Fatalf("valid bonus rejected: %v", err)
	}
}

func TestSettleDebitsBonusAndClosesSession(t *testing.T) {
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 200}
	svc := newTestPaymentService(sessions, balances)

	session, _ := svc.Begin(context.Background(), 42, testPlan())
	split, err := svc.ApplyBonus(context.Background(), session, 40)
	if err != nil {
		t.Fatalf("ApplyBonus returned error: %v", err)
	}

	if err := svc.Settle(context.Background(), 42, split.BonusCharged); err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}
	if balances.lastAmount != -40 {
		t.Fatalf("debited %d, want -40", balances.lastAmount)
	}
	if _, ok := sessions.sessions[42]; ok {
		t.Fatalf("settled session must be deleted")
	}
}

func TestSettleWithoutBonusSkipsDebit(t *testing.T) {
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 200}
	svc := newTestPaymentService(sessions, balances)

	_, _ = svc.Begin(context.Background(), 42, testPlan())
	if err := svc.Settle(context.Background(), 42, 0); err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}
	if balances.addCalls != 0 {
		t.Fatalf("no debit expected for a zero-bonus checkout")
	}
}

func TestSettleAfterSessionExpiryStillDebits(t *testing.T) {
	// The checkout session lives in Redis with a TTL, but the invoice
	// stays payable in the chat after it lapses. The debit amount travels
	// in the invoice payload, so settle must work with no session at all.
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 200}
	svc := newTestPaymentService(sessions, balances)

	if err := svc.Settle(context.Background(), 42, 40); err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}
	if balances.lastAmount != -40 {
		t.Fatalf("debited %d, want -40", balances.lastAmount)
	}
}

func TestSettleDebitFailureIsReconciliationError(t *testing.T) {
	sessions := newSessionStoreMock()
	balances := &balanceStoreMock{balance: 200, addErr: errors.New("connection reset")}
	svc := newTestPaymentService(sessions, balances)

	session, _ := svc.Begin(context.Background(), 42, testPlan())
	split, err := svc.ApplyBonus(context.Background(), session, 40)
	if err != nil {
		t.Fatalf("ApplyBonus returned error: %v", err)
	}

	err = svc.Settle(context.Background(), 42, split.BonusCharged)
	var recErr *ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected ReconciliationError, got %v", err)
	}
	if recErr.BonusCharged != 40 {
		t.Fatalf("reconciliation amount = %d, want 40", recErr.BonusCharged)
	}
	if _, ok := sessions.sessions[42]; ok {
		t.Fatalf("session must be closed even when the debit fails")
	}
}

func TestAbortDeletesSession(t *testing.T) {
	sessions := newSessionStoreMock()
	svc := newTestPaymentService(sessions, &balanceStoreMock{})

	_, _ = svc.Begin(context.Background(), 42, testPlan())
	if err := svc.Abort(context.Background(), 42); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}
	if _, ok := sessions.sessions[42]; ok {
		t.Fatalf("aborted session must be deleted")
	}
}

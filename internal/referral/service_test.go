package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qerenny/nowmeow/internal/database"
	"github.com/qerenny/nowmeow/internal/subscription"
)

type referralRepoMock struct {
	records  map[int64]*database.Referral
	referred []database.ReferredUser

	credits map[int64]int64
	addErr  map[int64]error

	upserts [][2]int64
}

func newReferralRepoMock() *referralRepoMock {
	return &referralRepoMock{
		records: make(map[int64]*database.Referral),
		credits: make(map[int64]int64),
		addErr:  make(map[int64]error),
	}
}

func (m *referralRepoMock) FindByTelegramId(ctx context.Context, telegramID int64) (*database.Referral, error) {
	return m.records[telegramID], nil
}

func (m *referralRepoMock) Create(ctx context.Context, telegramID int64) error {
	if _, ok := m.records[telegramID]; !ok {
		m.records[telegramID] = &database.Referral{TelegramID: telegramID}
	}
	return nil
}

func (m *referralRepoMock) UpsertReferrer(ctx context.Context, telegramID, referrerID int64) error {
	m.upserts = append(m.upserts, [2]int64{telegramID, referrerID})
	rec, ok := m.records[telegramID]
	if !ok {
		rec = &database.Referral{TelegramID: telegramID}
		m.records[telegramID] = rec
	}
	id := referrerID
	rec.ReferrerTelegramID = &id
	return nil
}

func (m *referralRepoMock) AddToBalance(ctx context.Context, telegramID int64, amount int64) error {
	if err := m.addErr[telegramID]; err != nil {
		return err
	}
	m.credits[telegramID] += amount
	return nil
}

func (m *referralRepoMock) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	return m.credits[telegramID], nil
}

func (m *referralRepoMock) FindReferredUsers(ctx context.Context) ([]database.ReferredUser, error) {
	return m.referred, nil
}

func (m *referralRepoMock) CountActiveByReferrer(ctx context.Context, referrerID int64, nowMs int64) (int, error) {
	return 0, nil
}

func (m *referralRepoMock) addRecord(telegramID int64, referrerID *int64) {
	m.records[telegramID] = &database.Referral{TelegramID: telegramID, ReferrerTelegramID: referrerID}
}

func TestEnsureReferralRecord_RejectsSelfReferral(t *testing.T) {
	repo := newReferralRepoMock()
	repo.addRecord(7, nil)
	svc := NewService(repo)

	err := svc.EnsureReferralRecord(context.Background(), 7, 7)
	if !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected ErrSelfReferral, got %v", err)
	}
	if len(repo.upserts) != 0 {
		t.Fatalf("no upsert may happen for a rejected referral")
	}
}

func TestEnsureReferralRecord_RejectsUnknownReferrer(t *testing.T) {
	repo := newReferralRepoMock()
	svc := NewService(repo)

	err := svc.EnsureReferralRecord(context.Background(), 7, 9)
	if !errors.Is(err, ErrUnknownReferrer) {
		t.Fatalf("expected ErrUnknownReferrer, got %v", err)
	}
}

func TestEnsureReferralRecord_RejectsReciprocalReferral(t *testing.T) {
	repo := newReferralRepoMock()
	// B (id 9) was already referred by A (id 7).
	a := int64(7)
	repo.addRecord(9, &a)
	repo.addRecord(7, nil)
	svc := NewService(repo)

	// Now A attempts to be referred by B.
	err := svc.EnsureReferralRecord(context.Background(), 7, 9)
	if !errors.Is(err, ErrReciprocalReferral) {
		t.Fatalf("expected ErrReciprocalReferral, got %v", err)
	}
}

func TestEnsureReferralRecord_FirstUseCreditsBonus(t *testing.T) {
	repo := newReferralRepoMock()
	repo.addRecord(9, nil)
	svc := NewService(repo)

	if err := svc.EnsureReferralRecord(context.Background(), 7, 9); err != nil {
		t.Fatalf("EnsureReferralRecord returned error: %v", err)
	}
	if got := repo.credits[7]; got != FirstUseBonus {
		t.Fatalf("first-use credit = %d, want %d", got, FirstUseBonus)
	}
	rec := repo.records[7]
	if rec == nil || rec.ReferrerTelegramID == nil || *rec.ReferrerTelegramID != 9 {
		t.Fatalf("referrer not recorded: %#v", rec)
	}
}

func TestEnsureReferralRecord_ReapplyChangesReferrerWithoutBonus(t *testing.T) {
	repo := newReferralRepoMock()
	old := int64(9)
	repo.addRecord(7, &old)
	repo.addRecord(9, nil)
	repo.addRecord(11, nil)
	svc := NewService(repo)

	if err := svc.EnsureReferralRecord(context.Background(), 7, 11); err != nil {
		t.Fatalf("EnsureReferralRecord returned error: %v", err)
	}
	if got := repo.credits[7]; got != 0 {
		t.Fatalf("re-applying a code must not credit the bonus again, got %d", got)
	}
	if *repo.records[7].ReferrerTelegramID != 11 {
		t.Fatalf("referrer was not switched")
	}
}

func msPtr(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func TestAccrueMonthlyBonuses_GraceExclusion(t *testing.T) {
	now := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)
	trialStart := now.Add(-24 * time.Hour)

	repo := newReferralRepoMock()
	repo.referred = []database.ReferredUser{
		// Still within the 3-day grace: expiry - trialStart = 2 days.
		{ReferrerTelegramID: 1, TelegramID: 100, ExpireAtMs: msPtr(trialStart.Add(48 * time.Hour)), TrialStartedAtMs: msPtr(trialStart)},
		// Past the grace: expiry - trialStart = 4 days.
		{ReferrerTelegramID: 1, TelegramID: 101, ExpireAtMs: msPtr(trialStart.Add(96 * time.Hour)), TrialStartedAtMs: msPtr(trialStart)},
	}
	svc := NewService(repo)

	total, err := svc.AccrueMonthlyBonuses(context.Background(), now)
	if err != nil {
		t.Fatalf("AccrueMonthlyBonuses returned error: %v", err)
	}
	if total != PerUserMonthlyBonus {
		t.Fatalf("total credited = %d, want %d (only the past-grace user counts)", total, PerUserMonthlyBonus)
	}
	if repo.credits[1] != PerUserMonthlyBonus {
		t.Fatalf("referrer credited %d, want %d", repo.credits[1], PerUserMonthlyBonus)
	}
}

func TestAccrueMonthlyBonuses_SkipsExpiredAndUnprovisioned(t *testing.T) {
	now := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)

	repo := newReferralRepoMock()
	repo.referred = []database.ReferredUser{
		// Never provisioned.
		{ReferrerTelegramID: 1, TelegramID: 100},
		// Expired.
		{ReferrerTelegramID: 1, TelegramID: 101, ExpireAtMs: msPtr(now.Add(-time.Hour))},
		// Active, no trial ever recorded.
		{ReferrerTelegramID: 1, TelegramID: 102, ExpireAtMs: msPtr(now.AddDate(0, 1, 0))},
	}
	svc := NewService(repo)

	total, err := svc.AccrueMonthlyBonuses(context.Background(), now)
	if err != nil {
		t.Fatalf("AccrueMonthlyBonuses returned error: %v", err)
	}
	if total != PerUserMonthlyBonus {
		t.Fatalf("total credited = %d, want %d", total, PerUserMonthlyBonus)
	}
}

func TestAccrueMonthlyBonuses_CreditsOncePerReferrer(t *testing.T) {
	now := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)
	active := msPtr(now.AddDate(0, 2, 0))

	repo := newReferralRepoMock()
	repo.referred = []database.ReferredUser{
		{ReferrerTelegramID: 1, TelegramID: 100, ExpireAtMs: active},
		{ReferrerTelegramID: 1, TelegramID: 101, ExpireAtMs: active},
		{ReferrerTelegramID: 2, TelegramID: 102, ExpireAtMs: active},
	}
	svc := NewService(repo)

	total, err := svc.AccrueMonthlyBonuses(context.Background(), now)
	if err != nil {
		t.Fatalf("AccrueMonthlyBonuses returned error: %v", err)
	}
	if total != 3*PerUserMonthlyBonus {
		t.Fatalf("total credited = %d, want %d", total, 3*PerUserMonthlyBonus)
	}
	if repo.credits[1] != 2*PerUserMonthlyBonus {
		t.Fatalf("referrer 1 credited %d, want %d", repo.credits[1], 2*PerUserMonthlyBonus)
	}
	if repo.credits[2] != PerUserMonthlyBonus {
		t.Fatalf("referrer 2 credited %d, want %d", repo.credits[2], PerUserMonthlyBonus)
	}
}

func TestAccrueMonthlyBonuses_FailedCreditDoesNotAbortTheRun(t *testing.T) {
	now := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)
	active := msPtr(now.AddDate(0, 2, 0))

	repo := newReferralRepoMock()
	repo.referred = []database.ReferredUser{
		{ReferrerTelegramID: 1, TelegramID: 100, ExpireAtMs: active},
		{ReferrerTelegramID: 2, TelegramID: 101, ExpireAtMs: active},
	}
	repo.addErr[1] = errors.New("connection reset")
	svc := NewService(repo)

	total, err := svc.AccrueMonthlyBonuses(context.Background(), now)
	if err != nil {
		t.Fatalf("AccrueMonthlyBonuses returned error: %v", err)
	}
	if total != PerUserMonthlyBonus {
		t.Fatalf("total credited = %d, want %d (failed credit excluded)", total, PerUserMonthlyBonus)
	}
	if repo.credits[2] != PerUserMonthlyBonus {
		t.Fatalf("referrer 2 credited %d, want %d", repo.credits[2], PerUserMonthlyBonus)
	}
}

func TestTrialGraceMatchesThreeDays(t *testing.T) {
	if subscription.TrialGrace != 72*time.Hour {
		t.Fatalf("trial grace = %s, want 72h", subscription.TrialGrace)
	}
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qerenny/nowmeow/internal/period"
)

// SessionState tracks where a checkout is in its lifecycle. Terminal
// cleanup deletes the session on every exit path: success, cancel, invalid
// input, or TTL timeout.
type SessionState string

const (
	StateChoosingMethod  SessionState = "choosing_method"
	StateEnteringBonus   SessionState = "entering_bonus"
	StateAwaitingPayment SessionState = "awaiting_payment"
)

// Session is a short-lived checkout owned by a single user.
type Session struct {
	TelegramID  int64         `json:"tg_id"`
	State       SessionState  `json:"state"`
	Period      period.Period `json:"period"`
	Label       string        `json:"label"`
	PriceMinor  int64         `json:"price_minor"`
	BonusInput  int64         `json:"bonus_input"`
	InvoiceMsg  int           `json:"invoice_msg_id"`
	PromptMsg   int           `json:"prompt_msg_id"`
	CreatedAtMs int64         `json:"created_at_ms"`
}

// SessionStore holds at most one checkout session per user.
type SessionStore interface {
	Get(ctx context.Context, telegramID int64) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, telegramID int64) error
}

// RedisSessionStore keeps sessions in Redis under a TTL so abandoned
// checkouts expire without any sweeper.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(telegramID int64) string {
	return fmt.Sprintf("payment:session:%d", telegramID)
}

func (s *RedisSessionStore) Get(ctx context.Context, telegramID int64) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(telegramID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read payment session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode payment session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode payment session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.TelegramID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save payment session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, sessionKey(telegramID)).Err(); err != nil {
		return fmt.Errorf("failed to delete payment session: %w", err)
	}
	return nil
}

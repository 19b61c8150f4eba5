package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/qerenny/nowmeow/internal/database"
	"github.com/qerenny/nowmeow/internal/handler"
	"github.com/qerenny/nowmeow/internal/period"
)

type userRepository interface {
	FindByExpiryRange(ctx context.Context, startMs, endMs int64) ([]database.User, error)
}

// ReminderService finds subscriptions expiring within the next day and
// nudges their owners to renew. Send failures are logged, never escalated.
type ReminderService struct {
	users       userRepository
	telegramBot *bot.Bot
	now         func() time.Time
	notify      func(ctx context.Context, user database.User) error
}

func NewReminderService(users userRepository, telegramBot *bot.Bot) *ReminderService {
	svc := &ReminderService{users: users, telegramBot: telegramBot, now: time.Now}
	svc.notify = svc.sendReminder
	return svc
}

// ProcessExpiryReminders sweeps the (now+23h, now+24h] window. Run slightly
// more often than hourly so no subscription slips between two sweeps.
func (s *ReminderService) ProcessExpiryReminders() error {
	ctx := context.Background()
	now := s.now()
	startMs := now.Add(23 * time.Hour).UnixMilli()
	endMs := now.Add(24 * time.Hour).UnixMilli()

	users, err := s.users.FindByExpiryRange(ctx, startMs, endMs)
	if err != nil {
		slog.Error("Failed to get users with expiring subscriptions", "error", err)
		return err
	}
	if len(users) == 0 {
		return nil
	}
	slog.Info(fmt.Sprintf("Found %d users with subscriptions expiring within a day", len(users)))

	sent := 0
	for _, user := range users {
		if err := s.notify(ctx, user); err != nil {
			slog.Error("Failed to send renewal reminder", "tgId", user.TelegramID, "error", err)
			continue
		}
		sent++
	}

	slog.Info(fmt.Sprintf("Sent %d renewal reminders", sent))
	return nil
}

func (s *ReminderService) sendReminder(ctx context.Context, user database.User) error {
	remaining := period.Classify(user.ExpireAtMs, s.now())
	var text string
	switch remaining.State {
	case period.StateTimeLeft:
		text = fmt.Sprintf("⏳ Подписка заканчивается через %s. Не забудь продлить!", remaining)
	default:
		text = "⏳ Подписка заканчивается меньше чем через час. Не забудь продлить!"
	}

	_, err := s.telegramBot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: user.TelegramID,
		Text:   text,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "🆙 Обновить подписку", CallbackData: handler.CallbackSubscriptions},
				},
			},
		},
	})
	return err
}

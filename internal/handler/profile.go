package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/period"
	"github.com/qerenny/nowmeow/internal/subscription"
)

// ProfileCallbackHandler показывает состояние подписки пользователя.
func (h Handler) ProfileCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery.Message.Message
	chatID := callback.Chat.ID

	status, user, err := h.subscriptions.Status(ctx, chatID)
	if err != nil {
		slog.Error("error deriving subscription status", "tgId", chatID, "error", err)
		return
	}

	var text string
	var keyboard [][]models.InlineKeyboardButton

	switch status {
	case subscription.StatusAbsent:
		text = "🐾 " + messages.Get("no_profile")
	case subscription.StatusExpired:
		expire := time.UnixMilli(user.ExpireAtMs).In(period.Location()).Format("02.01.2006 15:04")
		text = fmt.Sprintf("❌ Подписка истекла %s. Продли её в меню подписок.", expire)
	default:
		expire := time.UnixMilli(user.ExpireAtMs).In(period.Location()).Format("02.01.2006 15:04")
		remaining := period.Classify(user.ExpireAtMs, time.Now())
		if remaining.State == period.StateLessThanHour {
			text = fmt.Sprintf("😺 Подписка активна до %s (осталось меньше часа)", expire)
		} else {
			text = fmt.Sprintf("😺 Подписка активна до %s (осталось %s)", expire, remaining)
		}
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: "🔑 Ключ доступа", CallbackData: CallbackConnect},
		})
	}

	keyboard = append(keyboard, []models.InlineKeyboardButton{
		{Text: "🛒 Подписки", CallbackData: CallbackSubscriptions},
	})
	keyboard = append(keyboard, []models.InlineKeyboardButton{
		{Text: "⬅️ В главное меню", CallbackData: CallbackStart},
	})

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: callback.ID,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: keyboard,
		},
		Text: text,
	})
	if err != nil {
		slog.Error("Error rendering profile", "error", err)
	}
}

// ConnectCallbackHandler sends the stored connection string.
func (h Handler) ConnectCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.CallbackQuery.Message.Message.Chat.ID

	_, user, err := h.subscriptions.Status(ctx, chatID)
	if err != nil {
		slog.Error("error deriving subscription status", "tgId", chatID, "error", err)
		return
	}
	if user == nil {
		h.sendText(ctx, b, chatID, "❌ "+messages.Get("no_profile")+" 🐾")
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		ParseMode: models.ParseModeHTML,
		Text:      fmt.Sprintf("🔑 %s\n<code>%s</code>", messages.Get("connection_string"), user.ConnectionString),
	})
	if err != nil {
		slog.Error("Error sending connection string", "tgId", chatID, "error", err)
	}
}

package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/referral"
	"github.com/qerenny/nowmeow/internal/subscription"
)

func (h Handler) StartCommandHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	ctxWithTime, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	chatID := update.Message.Chat.ID

	status, _, err := h.subscriptions.Status(ctxWithTime, chatID)
	if err != nil {
		slog.Error("error deriving subscription status", "tgId", chatID, "error", err)
		h.sendText(ctx, b, chatID, messages.Get("system_error"))
		return
	}

	if err := h.referrals.RegisterUser(ctxWithTime, chatID); err != nil {
		slog.Error("error registering user in referral program", "tgId", chatID, "error", err)
		h.sendText(ctx, b, chatID, messages.Get("system_error"))
		return
	}

	// A referral code counts only for users without a subscription.
	if status == subscription.StatusAbsent && strings.Contains(update.Message.Text, "ref_") {
		h.applyReferralCode(ctxWithTime, b, chatID, update.Message.Text)
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: mainMenuKeyboard(),
		},
		Text: messages.Get("greeting"),
	})
	if err != nil {
		slog.Error("Error sending /start message", "error", err)
	}
}

func (h Handler) StartCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery.Message.Message
	chatID := callback.Chat.ID

	// Any navigation back to the menu voids an open checkout.
	h.abortOpenSession(ctx, b, chatID)

	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: callback.ID,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: mainMenuKeyboard(),
		},
		Text: messages.Get("greeting"),
	})
	if err != nil {
		slog.Error("Error rendering main menu", "error", err)
	}
}

func (h Handler) applyReferralCode(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	parts := strings.Split(text, " ")
	if len(parts) < 2 || !strings.HasPrefix(parts[1], "ref_") {
		return
	}
	referrerID, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref_"), 10, 64)
	if err != nil {
		slog.Error("error parsing referrer id", "error", err)
		return
	}

	err = h.referrals.EnsureReferralRecord(ctx, chatID, referrerID)
	switch {
	case errors.Is(err, referral.ErrSelfReferral):
		h.sendText(ctx, b, chatID, messages.Get("self_referral"))
	case errors.Is(err, referral.ErrReciprocalReferral):
		h.sendText(ctx, b, chatID, messages.Get("reciprocal_referral"))
	case errors.Is(err, referral.ErrUnknownReferrer):
		h.sendText(ctx, b, chatID, messages.Get("invalid_referral_code"))
	case err != nil:
		slog.Error("error applying referral code", "tgId", chatID, "referrerId", referrerID, "error", err)
	default:
		h.sendText(ctx, b, chatID, messages.Get("referral_code_activated"))
		h.sendText(ctx, b, referrerID, messages.Get("referral_code_used"))
	}
}

func (h Handler) sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		slog.Error("Error sending message", "tgId", chatID, "error", err)
	}
}

func mainMenuKeyboard() [][]models.InlineKeyboardButton {
	return [][]models.InlineKeyboardButton{
		{
			{Text: "🛒 Подписки", CallbackData: CallbackSubscriptions},
			{Text: "😺 Профиль", CallbackData: CallbackProfile},
		},
		{
			{Text: "🐾 Реферальная программа", CallbackData: CallbackReferral},
		},
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/config"
	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/period"
	"github.com/qerenny/nowmeow/internal/subscription"
)

func (h Handler) TrialCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.CallbackQuery.Message.Message.Chat.ID
	username := update.CallbackQuery.From.Username

	if !config.IsTrialEnabled() {
		return
	}

	outcome, err := h.subscriptions.CreateOrRenew(ctx, chatID, period.Day3, username)
	if errors.Is(err, subscription.ErrAlreadySubscribed) {
		h.sendText(ctx, b, chatID, "❌ "+messages.Get("trial_exists"))
		return
	}
	if err != nil {
		slog.Error("error granting trial", "tgId", chatID, "error", err)
		h.sendText(ctx, b, chatID, messages.Get("provisioning_error"))
		return
	}

	expire := time.UnixMilli(outcome.ExpireAtMs).In(period.Location()).Format("02.01.2006 15:04")
	h.sendText(ctx, b, chatID, fmt.Sprintf("✅ Пробная подписка активна до %s", expire))

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		ParseMode: models.ParseModeHTML,
		Text:      fmt.Sprintf("🔑 %s 🐾\n<code>%s</code>", messages.Get("trial_subscription"), outcome.Credential.ConnectionString),
	})
	if err != nil {
		slog.Error("Error sending trial key", "tgId", chatID, "error", err)
	}
}

package handler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/config"
	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/payment"
	"github.com/qerenny/nowmeow/internal/period"
	"github.com/qerenny/nowmeow/internal/subscription"
)

// parseCallbackData parses callback data in format "action?key1=value1&key2=value2"
func parseCallbackData(callbackData string) map[string]string {
	result := make(map[string]string)

	parts := strings.SplitN(callbackData, "?", 2)
	if len(parts) < 2 {
		return result
	}

	values, err := url.ParseQuery(parts[1])
	if err != nil {
		return result
	}

	for key, vals := range values {
		if len(vals) > 0 {
			result[key] = vals[0]
		}
	}

	return result
}

// SubscriptionsCallbackHandler показывает каталог тарифов; пробный период
// предлагается только пользователям без подписки.
func (h Handler) SubscriptionsCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery.Message.Message
	chatID := callback.Chat.ID

	status, _, err := h.subscriptions.Status(ctx, chatID)
	if err != nil {
		slog.Error("error deriving subscription status", "tgId", chatID, "error", err)
		return
	}

	var keyboard [][]models.InlineKeyboardButton
	if status == subscription.StatusAbsent && config.IsTrialEnabled() {
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: payment.TrialLabel, CallbackData: CallbackTrial},
		})
	}
	for _, plan := range payment.Catalog {
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: plan.Label, CallbackData: fmt.Sprintf("%s?period=%s", CallbackPlan, plan.Period)},
		})
	}
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
		Text: messages.Get("subscription_select"),
	})
	if err != nil {
		slog.Error("Error rendering subscription menu", "error", err)
	}
}

// PlanCallbackHandler opens a checkout session for the chosen plan and asks
// how the user wants to pay.
func (h Handler) PlanCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery.Message.Message
	chatID := callback.Chat.ID

	data := parseCallbackData(update.CallbackQuery.Data)
	p, err := period.Parse(data["period"])
	if err != nil {
		slog.Error("error parsing plan period from callback", "data", update.CallbackQuery.Data, "error", err)
		return
	}
	plan, ok := payment.PlanByPeriod(p)
	if !ok {
		slog.Error("period has no catalog entry", "period", string(p))
		return
	}

	// Leftover invoices from an earlier checkout are removed before the
	// session is replaced.
	h.abortOpenSession(ctx, b, chatID)

	session, err := h.payments.Begin(ctx, chatID, plan)
	if err != nil {
		slog.Error("error opening checkout session", "tgId", chatID, "error", err)
		return
	}

	balance, _, err := h.payments.BonusHint(ctx, session)
	if err != nil {
		slog.Error("error reading bonus balance", "tgId", chatID, "error", err)
		return
	}

	text := fmt.Sprintf(
		"%s\n├─ Цена: %d руб.\n└─ На вашем бонусном счёте: %d коинов.\n\nВыберите способ оплаты:",
		plan.Label, plan.PriceMinor/100, balance,
	)

	m, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "Оплатить полную сумму", CallbackData: CallbackPayFull},
					{Text: "Использовать бонусы", CallbackData: CallbackPayBonus},
				},
			},
		},
	})
	if err != nil {
		slog.Error("Error sending payment method prompt", "tgId", chatID, "error", err)
		return
	}

	session.PromptMsg = m.ID
	if err := h.payments.Save(ctx, session); err != nil {
		slog.Error("error saving checkout session", "tgId", chatID, "error", err)
	}
}

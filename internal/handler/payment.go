package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/config"
	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/payment"
	"github.com/qerenny/nowmeow/internal/period"
)

// PaymentMethodCallbackHandler reacts to the full-price / bonus-coins
// choice of an open checkout.
func (h Handler) PaymentMethodCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.CallbackQuery.Message.Message.Chat.ID

	session, err := h.payments.Get(ctx, chatID)
	if err != nil {
		slog.Error("error reading checkout session", "tgId", chatID, "error", err)
		return
	}
	if session == nil {
		h.sendText(ctx, b, chatID, messages.Get("session_not_found"))
		return
	}

	h.clearSessionMessages(ctx, b, session)

	switch update.CallbackQuery.Data {
	case CallbackPayFull:
		split, err := h.payments.ApplyBonus(ctx, session, 0)
		if err != nil {
			slog.Error("error applying zero bonus", "tgId", chatID, "error", err)
			h.sendText(ctx, b, chatID, messages.Get("payment_error"))
			return
		}
		h.sendInvoice(ctx, b, session, split)

	case CallbackPayBonus:
		session.State = payment.StateEnteringBonus
		if err := h.payments.Save(ctx, session); err != nil {
			slog.Error("error saving checkout session", "tgId", chatID, "error", err)
			return
		}

		balance, maxSpendable, err := h.payments.BonusHint(ctx, session)
		if err != nil {
			slog.Error("error reading bonus balance", "tgId", chatID, "error", err)
			return
		}

		text := fmt.Sprintf(
			"├─ Минимальная сумма оплаты: >= %d руб.\n"+
				"├─ У вас на счету: %d мяу-коинов\n"+
				"└─ Можете потратить максимум: %d коинов\n\n"+
				"Введите, сколько бонусов хотите потратить (числом).",
			config.MinBonusPayment(), balance, maxSpendable,
		)
		m, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
		if err != nil {
			slog.Error("Error sending bonus prompt", "tgId", chatID, "error", err)
			return
		}
		session.PromptMsg = m.ID
		if err := h.payments.Save(ctx, session); err != nil {
			slog.Error("error saving checkout session", "tgId", chatID, "error", err)
		}
	}
}

// TextMessageHandler consumes free text while a checkout session is open:
// a number while entering bonus, anything else voids the session.
func (h Handler) TextMessageHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID

	session, err := h.payments.Get(ctx, chatID)
	if err != nil {
		slog.Error("error reading checkout session", "tgId", chatID, "error", err)
		return
	}
	if session == nil {
		return
	}

	switch session.State {
	case payment.StateAwaitingPayment:
		// Stray input while an invoice is live voids the whole checkout.
		h.clearSessionMessages(ctx, b, session)
		if err := h.payments.Abort(ctx, chatID); err != nil {
			slog.Error("error aborting checkout session", "tgId", chatID, "error", err)
		}
		h.sendText(ctx, b, chatID, messages.Get("invoice_cancelled"))

	case payment.StateEnteringBonus:
		h.handleBonusInput(ctx, b, session, strings.TrimSpace(update.Message.Text))
	}
}

func (h Handler) handleBonusInput(ctx context.Context, b *bot.Bot, session *payment.Session, input string) {
	chatID := session.TelegramID

	requested, err := strconv.ParseInt(input, 10, 64)
	if err != nil || requested < 0 {
		h.clearSessionMessages(ctx, b, session)
		if err := h.payments.Abort(ctx, chatID); err != nil {
			slog.Error("error aborting checkout session", "tgId", chatID, "error", err)
		}
		h.sendText(ctx, b, chatID, messages.Get("session_reset"))
		return
	}

	split, err := h.payments.ApplyBonus(ctx, session, requested)
	switch {
	case errors.Is(err, payment.ErrInsufficientBonus):
		h.sendText(ctx, b, chatID, messages.Get("insufficient_bonus"))
		return
	case errors.Is(err, payment.ErrBelowMinimumPayment):
		h.sendText(ctx, b, chatID, fmt.Sprintf("Минимальная сумма оплаты должна быть >= %d руб.", config.MinBonusPayment()))
		return
	case err != nil:
		slog.Error("error applying bonus", "tgId", chatID, "error", err)
		return
	}

	h.clearSessionMessages(ctx, b, session)
	h.sendInvoice(ctx, b, session, split)
}

func (h Handler) sendInvoice(ctx context.Context, b *bot.Bot, session *payment.Session, split payment.SplitResult) {
	description := "Полная стоимость"
	if split.BonusCharged > 0 {
		description = fmt.Sprintf("Скидка %d бонусов", split.BonusCharged)
	}

	m, err := b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        session.TelegramID,
		Title:         session.Label,
		Description:   description,
		Payload:       payment.EncodeInvoicePayload(session.Period, split.BonusCharged),
		ProviderToken: config.ProviderToken(),
		Currency:      payment.Currency,
		Prices: []models.LabeledPrice{
			{Label: session.Label, Amount: int(split.PayableMinor)},
		},
		StartParameter: "subscription",
	})
	if err != nil {
		slog.Error("Error sending invoice", "tgId", session.TelegramID, "error", err)
		h.sendText(ctx, b, session.TelegramID, messages.Get("payment_error"))
		return
	}

	session.InvoiceMsg = m.ID
	if err := h.payments.Save(ctx, session); err != nil {
		slog.Error("error saving checkout session", "tgId", session.TelegramID, "error", err)
	}
}

func (h Handler) PreCheckoutHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.PreCheckoutQuery == nil {
		return
	}
	q := update.PreCheckoutQuery

	_, _, err := payment.DecodeInvoicePayload(q.InvoicePayload)
	ok := err == nil
	errorMessage := ""
	if !ok {
		errorMessage = "❌ К сожалению, произошла ошибка при проверке платежа. Попробуйте позже 😿"
	}

	_, err = b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: q.ID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	if err != nil {
		slog.Error("Error answering pre-checkout query", "error", err)
	}
}

// SuccessfulPaymentHandler settles the checkout (debits the bonus coins
// that discounted the invoice) and then provisions or renews the
// subscription. The provider has already charged the card at this point,
// so every failure path reports instead of unwinding.
func (h Handler) SuccessfulPaymentHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.SuccessfulPayment == nil {
		return
	}
	chatID := update.Message.Chat.ID
	paid := update.Message.SuccessfulPayment

	p, bonusCharged, err := payment.DecodeInvoicePayload(paid.InvoicePayload)
	if err != nil {
		slog.Error("invalid invoice payload on successful payment", "tgId", chatID, "payload", paid.InvoicePayload)
		h.sendText(ctx, b, chatID, messages.Get("provisioning_error"))
		return
	}

	session, err := h.payments.Get(ctx, chatID)
	if err != nil {
		slog.Error("error reading checkout session", "tgId", chatID, "error", err)
	}
	if session != nil {
		h.clearSessionMessages(ctx, b, session)
	}

	// Settle from the payload, not the session: the session may have
	// expired while the invoice stayed payable in the chat.
	if err := h.payments.Settle(ctx, chatID, bonusCharged); err != nil {
		var recErr *payment.ReconciliationError
		if errors.As(err, &recErr) {
			slog.Error("bonus debit failed after confirmed payment",
				"tgId", recErr.TelegramID, "bonus", recErr.BonusCharged, "error", recErr.Err)
			h.sendText(ctx, b, chatID, messages.Get("bonus_debit_error"))
		} else {
			slog.Error("error settling checkout session", "tgId", chatID, "error", err)
		}
	}

	h.sendText(ctx, b, chatID, messages.Get("payment_success"))

	outcome, err := h.subscriptions.CreateOrRenew(ctx, chatID, p, update.Message.From.Username)
	if err != nil {
		slog.Error("error provisioning after payment", "tgId", chatID, "error", err)
		h.sendText(ctx, b, chatID, messages.Get("provisioning_error"))
		return
	}

	expire := time.UnixMilli(outcome.ExpireAtMs).In(period.Location()).Format("02.01.2006 15:04")
	if outcome.Created {
		h.sendText(ctx, b, chatID, fmt.Sprintf("✅ Подписка активна до %s", expire))
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			ParseMode: models.ParseModeHTML,
			Text:      fmt.Sprintf("🔑 %s 🐾\n<code>%s</code>", messages.Get("new_subscription_key"), outcome.Credential.ConnectionString),
		})
		if err != nil {
			slog.Error("Error sending subscription key", "tgId", chatID, "error", err)
		}
	} else {
		h.sendText(ctx, b, chatID, fmt.Sprintf("✅ %s Действует до %s", messages.Get("subscription_updated"), expire))
	}
}

// abortOpenSession drops a checkout together with its on-screen messages.
// Used on every navigation that leaves the payment flow.
func (h Handler) abortOpenSession(ctx context.Context, b *bot.Bot, chatID int64) {
	session, err := h.payments.Get(ctx, chatID)
	if err != nil {
		slog.Error("error reading checkout session", "tgId", chatID, "error", err)
		return
	}
	if session == nil {
		return
	}
	h.clearSessionMessages(ctx, b, session)
	if err := h.payments.Abort(ctx, chatID); err != nil {
		slog.Error("error aborting checkout session", "tgId", chatID, "error", err)
	}
}

func (h Handler) clearSessionMessages(ctx context.Context, b *bot.Bot, session *payment.Session) {
	for _, messageID := range []int{session.PromptMsg, session.InvoiceMsg} {
		if messageID == 0 {
			continue
		}
		_, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    session.TelegramID,
			MessageID: messageID,
		})
		if err != nil {
			slog.Error("Error deleting checkout message", "tgId", session.TelegramID, "messageId", messageID, "error", err)
		}
	}
	session.PromptMsg = 0
	session.InvoiceMsg = 0
}

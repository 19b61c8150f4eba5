package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"log/slog"

	"github.com/qerenny/nowmeow/internal/config"
	"github.com/qerenny/nowmeow/internal/messages"
	"github.com/qerenny/nowmeow/internal/referral"
)

// ReferralCallbackHandler показывает меню реферальной программы со
// статистикой: активные рефералы, месячный бонус и баланс мяу-коинов.
func (h Handler) ReferralCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery.Message.Message
	chatID := callback.Chat.ID

	balance, err := h.referrals.Balance(ctx, chatID)
	if err != nil {
		slog.Error("error reading bonus balance", "tgId", chatID, "error", err)
		return
	}
	active, err := h.referrals.ActiveReferredCount(ctx, chatID)
	if err != nil {
		slog.Error("error counting active referrals", "tgId", chatID, "error", err)
		return
	}

	text := messages.Get("referral_greetings") + "\n\n" + fmt.Sprintf(
		"├─ Активных рефералов: %d\n├─ Ежемесячный бонус: %d коинов\n└─ На счету: %d мяу-коинов",
		active, active*referral.PerUserMonthlyBonus, balance,
	)

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: callback.ID,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "🔗 Моя ссылка", CallbackData: CallbackReferralLink},
					{Text: "📜 Правила", CallbackData: CallbackReferralRules},
				},
				{
					{Text: "⬅️ В главное меню", CallbackData: CallbackStart},
				},
			},
		},
		Text: text,
	})
	if err != nil {
		slog.Error("Error rendering referral menu", "error", err)
	}
}

// ReferralLinkCallbackHandler sends the user their personal invite link.
func (h Handler) ReferralLinkCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.CallbackQuery.Message.Message.Chat.ID

	link := fmt.Sprintf("%s?start=ref_%d", config.BotURL(), chatID)
	h.sendText(ctx, b, chatID, messages.Get("referral_link")+"\n"+link)
}

// ReferralRulesCallbackHandler описывает условия программы.
func (h Handler) ReferralRulesCallbackHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.CallbackQuery.Message.Message.Chat.ID

	text := fmt.Sprintf(
		"📜 Правила реферальной программы:\n\n"+
			"• За первое применение реферального кода начисляется %d мяу-коинов.\n"+
			"• Каждый месяц за каждого активного реферала (с оплаченной подпиской, без пробного периода) начисляется %d мяу-коинов.\n"+
			"• 1 мяу-коин = 1 рубль скидки при оплате подписки.\n"+
			"• Минимальная сумма к оплате после скидки — %d руб.",
		referral.FirstUseBonus, referral.PerUserMonthlyBonus, config.MinBonusPayment(),
	)
	h.sendText(ctx, b, chatID, text)
}

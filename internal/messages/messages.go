package messages

import (
	"log/slog"
	"math/rand"
)

// variants holds the user-facing texts. Keys with more than one entry get a
// random pick per call so the bot does not sound canned.
var variants = map[string][]string{
	"greeting": {
		"🐾 Мяу! Добро пожаловать! Выбирай, что будем делать:",
		"😺 Привет-привет! Котик на связи. Чем помочь?",
		"🐱 Мур! Рад тебя видеть. Вот главное меню:",
	},
	"subscription_select": {
		"😸 Выбери подписку, которая тебе подходит:",
		"🐾 Какой тариф возьмём? Выбирай:",
	},
	"subscription_updated": {
		"Мур-мур! Подписка продлена!",
		"Готово! Котик продлил твою подписку.",
	},
	"new_subscription_key": {
		"Держи свой ключ доступа",
		"Вот твой новый ключ, береги его",
	},
	"trial_subscription": {
		"Держи пробный ключ на 3 дня",
		"Вот твой тестовый ключ, 3 дня в подарок",
	},
	"trial_exists": {
		"У тебя уже есть подписка, пробный период недоступен 😿",
		"Пробный период выдаётся только один раз 🐾",
	},
	"connection_string": {
		"Твой ключ доступа",
		"Держи ключ подключения",
	},
	"no_profile": {
		"У тебя пока нет подписки. Оформи её в меню подписок",
		"Подписка не найдена. Загляни в меню подписок",
	},
	"payment_success": {
		"✅ Мур-мур! Платёж прошёл успешно!\n⌛ Сейчас наш котик всё настроит, подожди немножко 😺",
	},
	"system_error": {
		"❌ Что-то пошло не так. Пожалуйста, попробуйте ещё раз позже 😿",
	},
	"payment_error": {
		"❌ Произошла ошибка при создании платежа. Пожалуйста, попробуйте позже или обратитесь в поддержку 😿",
	},
	"session_not_found": {
		"Сессия оплаты не найдена. Попробуйте сначала выбрать подписку.",
	},
	"session_reset": {
		"Вы ввели некорректное значение. Сессия оплаты сброшена.",
	},
	"invoice_cancelled": {
		"Счёт аннулирован. Повторите покупку заново.",
	},
	"referral_greetings": {
		"🐾 Реферальная программа! Приглашай друзей и получай мяу-коины:",
		"😺 Зови друзей, копи мяу-коины, плати ими за подписку:",
	},
	"referral_link": {
		"Вот твоя персональная ссылка, делись ею с друзьями:",
		"Держи свою реферальную ссылку:",
	},
	"referral_code_used": {
		"🐾 По твоей ссылке пришёл новый пользователь!",
		"😺 Плюс один друг по твоей ссылке!",
	},
	"referral_code_activated": {
		"✅ Реферальный код принят! Бонусные коины уже на счету.",
		"🐾 Код активирован, мяу-коины начислены!",
	},
	"invalid_referral_code": {
		"Такой реферальный код не найден 😿",
	},
	"self_referral": {
		"Нельзя использовать собственную ссылку 😼",
	},
	"reciprocal_referral": {
		"Вы уже пригласили этого пользователя, взаимные коды не работают 😼",
	},
	"provisioning_error": {
		"❌ Произошла ошибка при настройке подписки. Пожалуйста, обратитесь в поддержку 😿",
	},
	"bonus_debit_error": {
		"❌ Произошла ошибка при списании бонусов. Пожалуйста, свяжитесь с поддержкой.",
	},
	"insufficient_bonus": {
		"У вас недостаточно бонусов. Введите меньшее число.",
	},
}

// Get returns one of the text variants registered for key, picked at random.
func Get(key string) string {
	texts, ok := variants[key]
	if !ok || len(texts) == 0 {
		slog.Warn("unknown message key", "key", key)
		return ""
	}
	return texts[rand.Intn(len(texts))]
}

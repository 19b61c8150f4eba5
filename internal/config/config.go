package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type config struct {
	telegramToken   string
	providerToken   string
	databaseURL     string
	redisAddr       string
	redisPassword   string
	redisDB         int
	panelURL        string
	panelUsername   string
	panelPassword   string
	botURL          string
	adminTelegramID int64
	healthCheckPort int
	minBonusPayment int64
	trialEnabled    bool
}

var conf config

// InitConfig loads .env if present and reads all settings from the
// environment. Missing required values are fatal at startup.
func InitConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("skipping .env file", "error", err)
	}

	conf = config{
		telegramToken:   mustEnv("TELEGRAM_TOKEN"),
		providerToken:   mustEnv("PROVIDER_TOKEN"),
		databaseURL:     mustEnv("DATABASE_URL"),
		redisAddr:       envOrDefault("REDIS_ADDR", "localhost:6379"),
		redisPassword:   os.Getenv("REDIS_PASSWORD"),
		redisDB:         envIntOrDefault("REDIS_DB", 0),
		panelURL:        mustEnv("PANEL_URL"),
		panelUsername:   mustEnv("PANEL_USERNAME"),
		panelPassword:   mustEnv("PANEL_PASSWORD"),
		adminTelegramID: envInt64OrDefault("ADMIN_TELEGRAM_ID", 0),
		healthCheckPort: envIntOrDefault("HEALTH_CHECK_PORT", 8080),
		minBonusPayment: envInt64OrDefault("MIN_BONUS_PAYMENT", 60),
		trialEnabled:    envOrDefault("TRIAL_ENABLED", "true") == "true",
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("environment variable %s is required", key))
	}
	return v
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer environment variable, using default", "key", key, "value", v)
		return def
	}
	return n
}

func envInt64OrDefault(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer environment variable, using default", "key", key, "value", v)
		return def
	}
	return n
}

func TelegramToken() string { return conf.telegramToken }

// ProviderToken is the Telegram Payments provider token used for invoices.
func ProviderToken() string { return conf.providerToken }

func DatabaseUrl() string { return conf.databaseURL }

func RedisAddr() string { return conf.redisAddr }

func RedisPassword() string { return conf.redisPassword }

func RedisDb() int { return conf.redisDB }

func PanelUrl() string { return conf.panelURL }

func PanelUsername() string { return conf.panelUsername }

func PanelPassword() string { return conf.panelPassword }

func GetAdminTelegramId() int64 { return conf.adminTelegramID }

func GetHealthCheckPort() int { return conf.healthCheckPort }

// MinBonusPayment is the minimum real-currency amount, in major units, that
// must remain payable after applying bonus coins.
func MinBonusPayment() int64 { return conf.minBonusPayment }

func IsTrialEnabled() bool { return conf.trialEnabled }

func SetBotURL(url string) { conf.botURL = url }

func BotURL() string { return conf.botURL }

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/qerenny/nowmeow/internal/config"
	"github.com/qerenny/nowmeow/internal/database"
	"github.com/qerenny/nowmeow/internal/handler"
	"github.com/qerenny/nowmeow/internal/notification"
	"github.com/qerenny/nowmeow/internal/panel"
	"github.com/qerenny/nowmeow/internal/payment"
	"github.com/qerenny/nowmeow/internal/referral"
	"github.com/qerenny/nowmeow/internal/scheduler"
	"github.com/qerenny/nowmeow/internal/subscription"
)

const paymentSessionTTL = 30 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	config.InitConfig()

	pool, err := initDatabase(ctx, config.DatabaseUrl())
	if err != nil {
		panic(err)
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		panic(err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       config.RedisDb(),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		panic(err)
	}

	userRepository := database.NewUserRepository(pool)
	referralRepository := database.NewReferralRepository(pool)

	panelClient := panel.NewClient(config.PanelUrl(), config.PanelUsername(), config.PanelPassword())

	subscriptionService := subscription.NewService(userRepository, panelClient)
	referralService := referral.NewService(referralRepository)
	sessionStore := payment.NewRedisSessionStore(redisClient, paymentSessionTTL)
	paymentService := payment.NewService(sessionStore, referralRepository, config.MinBonusPayment())

	b, err := bot.New(config.TelegramToken(), bot.WithWorkers(3))
	if err != nil {
		panic(err)
	}
	reminderService := notification.NewReminderService(userRepository, b)

	h := handler.NewHandler(subscriptionService, paymentService, referralService)

	me, err := b.GetMe(ctx)
	if err != nil {
		panic(err)
	}
	config.SetBotURL(fmt.Sprintf("https://t.me/%s", me.Username))

	_, _ = b.SetChatMenuButton(ctx, &bot.SetChatMenuButtonParams{
		MenuButton: &models.MenuButtonCommands{Type: models.MenuButtonTypeCommands},
	})
	_, _ = b.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands:     []models.BotCommand{{Command: "start", Description: "Начать работу с ботом"}},
		LanguageCode: "ru",
	})

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.StartCommandHandler)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackStart, bot.MatchTypeExact, h.StartCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackSubscriptions, bot.MatchTypeExact, h.SubscriptionsCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackTrial, bot.MatchTypeExact, h.TrialCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackProfile, bot.MatchTypeExact, h.ProfileCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackConnect, bot.MatchTypeExact, h.ConnectCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackReferral, bot.MatchTypeExact, h.ReferralCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackReferralLink, bot.MatchTypeExact, h.ReferralLinkCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackReferralRules, bot.MatchTypeExact, h.ReferralRulesCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackPlan, bot.MatchTypePrefix, h.PlanCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackPayFull, bot.MatchTypeExact, h.PaymentMethodCallbackHandler)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, handler.CallbackPayBonus, bot.MatchTypeExact, h.PaymentMethodCallbackHandler)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.PreCheckoutQuery != nil
	}, h.PreCheckoutHandler)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && update.Message.SuccessfulPayment != nil
	}, h.SuccessfulPaymentHandler)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
	}, h.TextMessageHandler)

	cronJobs, err := scheduler.Start(referralService, reminderService)
	if err != nil {
		panic(err)
	}
	defer cronJobs.Stop()

	mux := http.NewServeMux()
	mux.Handle("/healthcheck", healthHandler(pool, panelClient, redisClient))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", config.GetHealthCheckPort()), Handler: mux}
	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	slog.Info("Bot is starting...")
	b.Start(ctx)

	log.Println("Shutting down health server…")
	shutdownCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func healthHandler(pool *pgxpool.Pool, panelClient *panel.Client, redisClient *redis.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "db": "ok", "panel": "ok", "redis": "ok"}

		dbCtx, dbCancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer dbCancel()
		if err := pool.Ping(dbCtx); err != nil {
			status["status"] = "fail"
			status["db"] = "error: " + err.Error()
		}

		panelCtx, panelCancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer panelCancel()
		if err := panelClient.Ping(panelCtx); err != nil {
			status["status"] = "fail"
			status["panel"] = "error: " + err.Error()
		}

		redisCtx, redisCancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer redisCancel()
		if err := redisClient.Ping(redisCtx).Err(); err != nil {
			status["status"] = "fail"
			status["redis"] = "error: " + err.Error()
		}

		if status["status"] != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"%s","db":"%s","panel":"%s","redis":"%s","time":"%s"}`,
			status["status"], status["db"], status["panel"], status["redis"], time.Now().Format(time.RFC3339))
	})
}

func initDatabase(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.MinConns = 5
	return pgxpool.ConnectConfig(ctx, cfg)
}

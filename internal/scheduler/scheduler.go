package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/qerenny/nowmeow/internal/notification"
	"github.com/qerenny/nowmeow/internal/period"
	"github.com/qerenny/nowmeow/internal/referral"
)

// Start registers the recurring jobs and starts the cron loop: monthly
// referral accrual on the 1st at 01:00 Moscow time, and the renewal
// reminder sweep slightly more often than hourly so no one-hour expiry
// window is skipped.
func Start(referrals *referral.Service, reminders *notification.ReminderService) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(period.Location()))

	_, err := c.AddFunc("0 1 1 * *", func() {
		total, err := referrals.AccrueMonthlyBonuses(context.Background(), time.Now())
		if err != nil {
			slog.Error("monthly referral accrual failed", "error", err)
			return
		}
		slog.Info("monthly referral accrual finished", "totalCredited", total)
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc("@every 59m", func() {
		if err := reminders.ProcessExpiryReminders(); err != nil {
			slog.Error("renewal reminder sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

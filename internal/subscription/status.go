package subscription

import (
	"time"

	"github.com/qerenny/nowmeow/internal/database"
)

// Status is the explicit subscription state derived from stored timestamps.
// It is never persisted; DeriveStatus is the single place that interprets
// the nullable fields.
type Status int

const (
	StatusAbsent Status = iota
	StatusTrialing
	StatusActive
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusTrialing:
		return "trialing"
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	}
	return "unknown"
}

// TrialGrace is the window after trial start during which a user still
// counts as trialing, and is excluded from referral accrual.
const TrialGrace = 3 * 24 * time.Hour

// DeriveStatus computes the tagged subscription state for a user record
// (nil means no record exists).
func DeriveStatus(user *database.User, now time.Time) Status {
	if user == nil {
		return StatusAbsent
	}
	nowMs := now.UnixMilli()
	if user.ExpireAtMs <= nowMs {
		return StatusExpired
	}
	if user.TrialStartedAtMs != nil && user.ExpireAtMs-*user.TrialStartedAtMs <= TrialGrace.Milliseconds() {
		return StatusTrialing
	}
	return StatusActive
}

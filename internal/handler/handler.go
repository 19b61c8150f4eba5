package handler

import (
	"github.com/qerenny/nowmeow/internal/payment"
	"github.com/qerenny/nowmeow/internal/referral"
	"github.com/qerenny/nowmeow/internal/subscription"
)

type Handler struct {
	subscriptions *subscription.Service
	payments      *payment.Service
	referrals     *referral.Service
}

func NewHandler(
	subscriptions *subscription.Service,
	payments *payment.Service,
	referrals *referral.Service) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		payments:      payments,
		referrals:     referrals,
	}
}

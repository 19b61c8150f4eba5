package handler

const (
	CallbackStart         = "start"
	CallbackSubscriptions = "subscriptions"
	CallbackTrial         = "trial"
	CallbackProfile       = "profile"
	CallbackConnect       = "connect"
	CallbackReferral      = "referral"
	CallbackReferralLink  = "referral_link"
	CallbackReferralRules = "referral_rules"

	// Plan selection, carries the period: "plan?period=month1".
	CallbackPlan = "plan"

	// Payment method choice inside an open checkout session.
	CallbackPayFull  = "pay_full"
	CallbackPayBonus = "pay_bonus"
)

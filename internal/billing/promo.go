package billing

import "time"

type PromoRule struct {
	Code            string
	AmountCents     int64
	MaxActivations  *int
	UsedActivations int
	ExpiresAt       *time.Time
	IsActive        bool
}

type PromoValidationInput struct {
	Now             time.Time
	AlreadyRedeemed bool
}

type PromoValidationOutput struct {
	Valid       bool
	AmountCents int64
	Reason      string
}

const (
	PromoReasonOK              = ""
	PromoReasonInactive        = "inactive"
	PromoReasonExpired         = "expired"
	PromoReasonLimitReached    = "activation_limit_reached"
	PromoReasonAlreadyRedeemed = "already_redeemed"
	PromoReasonBadAmount       = "invalid_amount"
)

// ValidatePromo applies the redemption rules in order: active, not
// expired, under the activation cap, not already redeemed by this user.
func ValidatePromo(rule PromoRule, in PromoValidationInput) PromoValidationOutput {
	if !rule.IsActive {
		return PromoValidationOutput{Valid: false, Reason: PromoReasonInactive}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if rule.ExpiresAt != nil && now.After(rule.ExpiresAt.UTC()) {
		return PromoValidationOutput{Valid: false, Reason: PromoReasonExpired}
	}
	if rule.MaxActivations != nil && *rule.MaxActivations > 0 && rule.UsedActivations >= *rule.MaxActivations {
		return PromoValidationOutput{Valid: false, Reason: PromoReasonLimitReached}
	}
	if in.AlreadyRedeemed {
		return PromoValidationOutput{Valid: false, Reason: PromoReasonAlreadyRedeemed}
	}
	if rule.AmountCents <= 0 {
		return PromoValidationOutput{Valid: false, Reason: PromoReasonBadAmount}
	}
	return PromoValidationOutput{
		Valid:       true,
		AmountCents: rule.AmountCents,
		Reason:      PromoReasonOK,
	}
}

package models

import (
	"time"

	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
)

// Params are the offer parameters fixed at creation and immutable thereafter.
//
// Invariants:
//   - MinFund ≤ MaxFund
//   - TargetAmount ≥ MaxFund
//   - InterestPercent is in [0, 100]
type Params struct {
	Custodian       domain.AccountID `json:"custodian"`
	TargetAmount    uint64           `json:"target_amount"`
	MinFund         uint64           `json:"min_fund"`
	MaxFund         uint64           `json:"max_fund"`
	InterestPercent uint64           `json:"interest_percent"`

	// MinSubscribePeriod is the enforced minimum duration of the subscribing
	// phase. SubscribeOpenUntil is derived from the time source at creation.
	// No transition guard currently consults it; the early-advance check is
	// an open question in the upstream design and is intentionally left
	// unenforced rather than invented here.
	MinSubscribePeriod time.Duration `json:"min_subscribe_period"`
	SubscribeOpenUntil time.Time     `json:"subscribe_open_until"`
}

// NewParams validates and freezes the offer parameters, capturing the
// subscribing-phase floor against the supplied time source.
func NewParams(custodian domain.AccountID, target, minFund, maxFund, interestPercent uint64, minPeriod time.Duration, now time.Time) (Params, error) {
	if custodian.IsNil() {
		return Params{}, dErrors.New(dErrors.CodeValidation, "custodian account is required")
	}
	if minFund > maxFund {
		return Params{}, dErrors.New(dErrors.CodeValidation, "minimum per-participant amount exceeds maximum")
	}
	if target < maxFund {
		return Params{}, dErrors.New(dErrors.CodeValidation, "target amount must be at least the per-participant maximum")
	}
	if interestPercent > 100 {
		return Params{}, dErrors.New(dErrors.CodeValidation, "interest percentage must be between 0 and 100")
	}
	return Params{
		Custodian:          custodian,
		TargetAmount:       target,
		MinFund:            minFund,
		MaxFund:            maxFund,
		InterestPercent:    interestPercent,
		MinSubscribePeriod: minPeriod,
		SubscribeOpenUntil: now.Add(minPeriod),
	}, nil
}

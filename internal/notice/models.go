package notice

import (
	"time"

	"crowdvault/pkg/domain"
)

// Kind labels the observable signals the escrow engine raises. Notices are
// one-way and non-blocking; no acknowledgment flows back.
type Kind string

const (
	KindNewContribution    Kind = "new-contribution"
	KindTargetReached      Kind = "target-reached"
	KindTooMuchAttempted   Kind = "too-much-attempted"
	KindAdvancedToDividend Kind = "advanced-to-dividend"
	KindWithdrawal         Kind = "withdrawal"
	KindOfferClosed        Kind = "offer-closed"
	KindAllRefunded        Kind = "all-refunded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID      string           `json:"id"`
	Kind    Kind             `json:"kind"`
	At      time.Time        `json:"at"`
	Account domain.AccountID `json:"account,omitempty"`
	Amount  uint64           `json:"amount,omitempty"`

	// Needed and Provided are set on too-much-attempted so observers can
	// distinguish "target reached" from "this contribution is too large".
	Needed   uint64 `json:"needed,omitempty"`
	Provided uint64 `json:"provided,omitempty"`
}

package models

import (
	"time"

	"crowdvault/pkg/domain"
)

// Investment is one participant's active commitment. A participant owns
// exactly zero or one active Investment at any time; the record is created
// only by a successful subscription and deleted only by withdrawal during
// the subscribing phase or by disbursement afterwards.
type Investment struct {
	// Account is the owning party. Immutable once recorded.
	Account domain.AccountID `json:"account"`
	// Name is an optional display name, informational only.
	Name string `json:"name,omitempty"`
	// Amount is the committed native-currency amount.
	Amount uint64 `json:"amount"`

	RecordedAt time.Time `json:"recorded_at"`
}

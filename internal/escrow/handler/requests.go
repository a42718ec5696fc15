package handler

// SubscribeRequest carries a participant's commitment: optional display name
// and the attached amount in native-currency units.
type SubscribeRequest struct {
	Name   string `json:"name,omitempty"`
	Amount uint64 `json:"amount"`
}

// SuppliedAmountRequest carries the amount a custodian attaches to an
// interest payment or a cancellation.
type SuppliedAmountRequest struct {
	Amount uint64 `json:"amount"`
}

// AmountResponse reports a single amount (aggregate, interest due).
type AmountResponse struct {
	Amount uint64 `json:"amount"`
}

// StateResponse reports the current cycle and offer parameters.
type StateResponse struct {
	Cycle           string `json:"cycle"`
	TargetAmount    uint64 `json:"target_amount"`
	MinFund         uint64 `json:"min_fund"`
	MaxFund         uint64 `json:"max_fund"`
	InterestPercent uint64 `json:"interest_percent"`
}

package models

// Cycle is the single process-wide lifecycle value of the offer. It is owned
// exclusively by the escrow service; every other component reads it through
// the service's accessor and never mutates it directly.
//
// Transitions:
//   - subscribing → dividend (custodian advances once the target is met)
//   - subscribing → closed   (custodian cancels before taking custody)
//   - dividend    → closed   (custodian cancels after resupplying the pool)
//
// Closed is one terminal state with two possible predecessors; early
// cancellation and normal closure are distinguished by the notices emitted,
// not by distinct states.
type Cycle string

const (
	CycleSubscribing Cycle = "subscribing"
	CycleDividend    Cycle = "dividend"
	CycleClosed      Cycle = "closed"
)

// validCycleTransitions is the single source of truth for allowed edges.
var validCycleTransitions = map[Cycle][]Cycle{
	CycleSubscribing: {CycleDividend, CycleClosed},
	CycleDividend:    {CycleClosed},
	CycleClosed:      {},
}

// CycleNames lists every cycle value, for metric labels and validation.
func CycleNames() []string {
	return []string{
		CycleSubscribing.String(),
		CycleDividend.String(),
		CycleClosed.String(),
	}
}

// CanTransitionTo checks whether moving from c to next is an allowed edge.
func (c Cycle) CanTransitionTo(next Cycle) bool {
	for _, allowed := range validCycleTransitions[c] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true once no further mutating operations are permitted.
func (c Cycle) IsTerminal() bool {
	return c == CycleClosed
}

// String returns the string representation of the cycle state.
func (c Cycle) String() string {
	return string(c)
}

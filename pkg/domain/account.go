package domain

import "fmt"

// AccountID is the opaque identity of a party holding or receiving native
// currency: a participant, the custodian, or the escrow pool itself.
//
// Usage: construct via ParseAccountID at trust boundaries so downstream code
// can assume the value is well-formed; direct casting bypasses validation.
type AccountID string

// maxAccountIDLen bounds identities so they stay usable as storage keys.
const maxAccountIDLen = 128

// ParseAccountID constructs an AccountID from external input.
//
// Errors: plain errors only; callers at the boundary wrap them into coded
// domain errors.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", fmt.Errorf("account id cannot be empty")
	}
	if len(s) > maxAccountIDLen {
		return "", fmt.Errorf("account id exceeds %d characters", maxAccountIDLen)
	}
	return AccountID(s), nil
}

// String returns the string representation of the account id.
func (a AccountID) String() string {
	return string(a)
}

// IsNil returns true if the account id is empty.
func (a AccountID) IsNil() bool {
	return a == ""
}

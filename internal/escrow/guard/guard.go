// Package guard holds the custodian capability check. The escrow service
// performs it once per privileged operation through an interface, so tests
// can swap the check independently of the accounting logic.
package guard

import (
	"context"

	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
)

// CustodianGuard grants the custodian capability to exactly one account,
// fixed at offer creation.
type CustodianGuard struct {
	custodian domain.AccountID
}

func NewCustodianGuard(custodian domain.AccountID) *CustodianGuard {
	return &CustodianGuard{custodian: custodian}
}

// RequireCustodian returns CodeUnauthorized unless the caller is the
// custodian.
func (g *CustodianGuard) RequireCustodian(_ context.Context, caller domain.AccountID) error {
	if caller != g.custodian {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the custodian")
	}
	return nil
}

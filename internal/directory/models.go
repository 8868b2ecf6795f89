// Package directory holds the relationship directory: who retains whom, under
// what display name. Entries are self-declared and independently maintained;
// the billing ledger, not the directory, is the gate on whether a
// relationship is real.
package directory

import (
	"trustline/pkg/domain"
)

// RetainorInfo is a retainor's self-declared profile, keyed by their address.
type RetainorInfo struct {
	Name      string           `json:"name"`
	Retainees []domain.Address `json:"retainees"`
}

// RetaineeInfo is a retainee's self-declared profile, keyed by their address.
type RetaineeInfo struct {
	Name      string           `json:"name"`
	Retainors []domain.Address `json:"retainors"`
}

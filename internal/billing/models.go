package billing

import (
	"fmt"

	"trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
)

// ApprovalStatus is the retainee's verdict on a pending bill.
type ApprovalStatus string

const (
	StatusApproved ApprovalStatus = "approved"
	StatusDenied   ApprovalStatus = "denied"
)

// ParseApprovalStatus rejects anything outside the closed enum.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch ApprovalStatus(s) {
	case StatusApproved, StatusDenied:
		return ApprovalStatus(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown approval status %q", s)
}

// Pair identifies a billing relationship. All pending-bill, history, and
// balance state hangs off this composite key.
type Pair struct {
	Retainor domain.Address `json:"retainor"`
	Retainee domain.Address `json:"retainee"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s:%s", p.Retainor, p.Retainee)
}

// Bill is a payment request occupying a pair's single pending slot. Token is
// the denomination captured at submission time; it is the zero Address when
// the pair had no funded balance to infer one from.
type Bill struct {
	Amount domain.Amount  `json:"amount"`
	Token  domain.Address `json:"token"`
	Notes  string         `json:"notes"`
	Date   string         `json:"date"`
}

// Receipt is an immutable history entry recording a bill and its resolution.
// Notes and Date belong to the resolution, not the bill.
type Receipt struct {
	Bill   Bill           `json:"bill"`
	Status ApprovalStatus `json:"status"`
	Notes  string         `json:"notes"`
	Date   string         `json:"date"`
}

// RetainerBalance is an informational prepaid balance a pair holds in one
// token. A pair may hold balances in several tokens at once.
type RetainerBalance struct {
	Retainor domain.Address `json:"retainor"`
	Retainee domain.Address `json:"retainee"`
	Token    domain.Address `json:"token"`
	Amount   domain.Amount  `json:"amount"`
}

// FundingPolicy controls which party may fund a pair's retainer balance.
type FundingPolicy string

const (
	FundByRetainor FundingPolicy = "retainor"
	FundByRetainee FundingPolicy = "retainee"
	FundByEither   FundingPolicy = "either"
)

// ParseFundingPolicy validates a configured policy, defaulting empty to
// FundByEither.
func ParseFundingPolicy(s string) (FundingPolicy, error) {
	if s == "" {
		return FundByEither, nil
	}
	switch FundingPolicy(s) {
	case FundByRetainor, FundByRetainee, FundByEither:
		return FundingPolicy(s), nil
	}
	return "", fmt.Errorf("unknown funding policy %q", s)
}

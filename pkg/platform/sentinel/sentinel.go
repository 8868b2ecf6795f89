package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the token collaborator
// return these (optionally wrapped) so services can translate them into coded
// domain errors at the boundary.
//
// These represent factual states about stored records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a record already occupies the slot (e.g. pending bill)
// - ErrInvalidState: record in wrong state for the operation (e.g. overdraft)
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (negative amounts, malformed addresses), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

package escrow

import (
	"time"

	"trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
)

// TimeBoundKind says which side of the timestamp a withdrawal is allowed on.
type TimeBoundKind string

const (
	// BoundBefore permits withdrawal strictly before the timestamp.
	BoundBefore TimeBoundKind = "before"
	// BoundAfter permits withdrawal at or after the timestamp.
	BoundAfter TimeBoundKind = "after"
)

// ParseTimeBoundKind rejects anything outside the closed enum.
func ParseTimeBoundKind(s string) (TimeBoundKind, error) {
	switch TimeBoundKind(s) {
	case BoundBefore, BoundAfter:
		return TimeBoundKind(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown time bound kind %q", s)
}

// TimeBound is the withdrawal window attached to a receipt.
type TimeBound struct {
	Kind      TimeBoundKind    `json:"kind"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

// Satisfied reports whether the bound permits withdrawal at the given
// instant. Before is exclusive of the boundary, After inclusive.
func (tb TimeBound) Satisfied(now time.Time) bool {
	current := domain.TimestampFromTime(now)
	switch tb.Kind {
	case BoundBefore:
		return current < tb.Timestamp
	case BoundAfter:
		return current >= tb.Timestamp
	}
	return false
}

// ReceiptConfig is a locked escrow deposit. Receipts are keyed by depositor
// and a per-depositor index; the depositor is also the only party entitled
// to withdraw.
type ReceiptConfig struct {
	Amount    domain.Amount  `json:"amount"`
	Depositor domain.Address `json:"depositor"`
	Token     domain.Address `json:"token"`
	TimeBound TimeBound      `json:"time_bound"`
}

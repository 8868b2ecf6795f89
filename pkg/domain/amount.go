package domain

import (
	"fmt"
	"math/big"

	dErrors "trustline/pkg/domain-errors"
)

// Amount is an arbitrary-precision signed integer. The ledger treats negative
// results as validation failures, never as values to clamp, so arithmetic
// helpers return fresh Amounts and leave range policy to the caller.
//
// The zero value is a usable zero amount.
type Amount struct {
	v big.Int
}

// NewAmount builds an Amount from an int64. Mostly a test convenience.
func NewAmount(i int64) Amount {
	var a Amount
	a.v.SetInt64(i)
	return a
}

// ParseAmount parses a base-10 integer string at a trust boundary.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.v.SetString(s, 10); !ok {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be a base-10 integer")
	}
	return a, nil
}

// Sign returns -1, 0, or +1.
func (a Amount) Sign() int { return a.v.Sign() }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a.v.Sign() < 0 }

// Add returns a + b without mutating either operand.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a - b without mutating either operand.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// Cmp compares a against b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Equal reports value equality.
func (a Amount) Equal(b Amount) bool { return a.v.Cmp(&b.v) == 0 }

func (a Amount) String() string { return a.v.String() }

// MarshalJSON encodes the amount as a JSON string so precision survives
// clients that decode numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.String() + `"`), nil
}

// UnmarshalJSON accepts both string and bare-number encodings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := a.v.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}

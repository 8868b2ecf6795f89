// Package domain defines the semantic types shared by every ledger component:
// addresses identify parties, amounts carry value, timestamps gate escrow
// release. Parsing happens once at trust boundaries; everything past a Parse
// call may assume a well-formed value.
package domain

import (
	"strings"

	dErrors "trustline/pkg/domain-errors"
)

// Address is an opaque party identity. The service never interprets it beyond
// equality; the host that authenticated the caller decides what it means.
type Address string

// ZeroAddress is the absent address. Bill records created before a pair is
// funded carry it as their token.
const ZeroAddress Address = ""

// maxAddressLen bounds storage keys; composite keys concatenate up to three
// addresses plus an index.
const maxAddressLen = 128

// ParseAddress validates an address at a trust boundary. Addresses join
// composite storage keys with ':' as separator, so the separator itself is
// rejected rather than escaped.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if len(s) > maxAddressLen {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address exceeds maximum length")
	}
	if strings.ContainsAny(s, ": \t\n") {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address contains reserved characters")
	}
	return Address(s), nil
}

// ParseAddresses validates a slice, preserving order and dropping duplicates
// (first occurrence wins).
func ParseAddresses(values []string) ([]Address, error) {
	seen := make(map[Address]struct{}, len(values))
	out := make([]Address, 0, len(values))
	for _, v := range values {
		addr, err := ParseAddress(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is absent.
func (a Address) IsZero() bool { return a == ZeroAddress }

package arbitration

import (
	"strconv"

	"trustline/pkg/domain"
)

// ArbitrationConfig is an arbiter's standing panel: the cosigners entitled
// to release locked escrow receipts and how many of them must agree.
type ArbitrationConfig struct {
	Cosigners []domain.Address `json:"cosigners"`
	Approvals uint32           `json:"approvals"`
}

// Member reports whether addr sits on the panel.
func (c ArbitrationConfig) Member(addr domain.Address) bool {
	for _, cosigner := range c.Cosigners {
		if cosigner == addr {
			return true
		}
	}
	return false
}

// EventKey identifies one release decision: an arbiter's panel ruling on one
// escrow receipt.
type EventKey struct {
	Arbiter   domain.Address
	Depositor domain.Address
	Index     uint32
}

func (k EventKey) String() string {
	return k.Arbiter.String() + ":" + k.Depositor.String() + ":" + strconv.FormatUint(uint64(k.Index), 10)
}

// ArbitrationEventConfig accumulates the deduplicated signatures gathered
// for one release decision.
type ArbitrationEventConfig struct {
	Arbitration domain.Address   `json:"arbitration"`
	Signatures  []domain.Address `json:"signatures"`
}

// Package audit captures who did what to which ledger record. The contract
// core itself has no telemetry responsibility; audit is an operational
// concern layered beside it, emitted after a mutation commits and never able
// to fail the operation.
package audit

import (
	"time"

	"trustline/pkg/domain"
)

// Event is emitted from domain services on every mutating operation. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	// Actor is the authenticated identity that performed the operation.
	Actor domain.Address
	// Subject is the primary record the operation touched, rendered as the
	// composite key string (e.g. "pending_bill:alice:bob").
	Subject string
	Action  Action
	// Reason carries operation-specific detail (status, amount, token).
	Reason    string
	RequestID string
}

// Action names a mutating ledger operation.
type Action string

const (
	ActionRetainorInfoSet  Action = "retainor_info_set"
	ActionRetaineeInfoSet  Action = "retainee_info_set"
	ActionBillSubmitted    Action = "bill_submitted"
	ActionBillUnsubmitted  Action = "bill_unsubmitted"
	ActionBillResolved     Action = "bill_resolved"
	ActionBalanceFunded    Action = "balance_funded"
	ActionEscrowDeposited  Action = "escrow_deposited"
	ActionEscrowWithdrawn  Action = "escrow_withdrawn"
	ActionAdminChanged     Action = "admin_changed"
	ActionArbitrationMade  Action = "arbitration_created"
	ActionArbitrationSign  Action = "arbitration_signed"
)

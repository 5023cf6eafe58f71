// Package fsm enforces the order lifecycle state machine from spec §3.
// It owns only the transition table; connectors call Transition before
// ever mutating stored order state.
package fsm

import (
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/xerrors"
)

// legal maps a from-state to the set of to-states it may transition into.
// The source spec listed PENDING -> CANCELED twice; deduped here per
// DESIGN.md's Open Question decision.
var legal = map[domain.OrderStatus]map[domain.OrderStatus]struct{}{
	domain.OrderStatusInitialized: set(domain.OrderStatusPending, domain.OrderStatusFailed),
	domain.OrderStatusPending: set(
		domain.OrderStatusAccepted,
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
		domain.OrderStatusCanceling,
		domain.OrderStatusCanceled,
		domain.OrderStatusCancelFailed,
	),
	domain.OrderStatusCanceling: set(
		domain.OrderStatusCanceled,
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
	),
	domain.OrderStatusAccepted: set(
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
		domain.OrderStatusCanceling,
		domain.OrderStatusCanceled,
		domain.OrderStatusExpired,
		domain.OrderStatusCancelFailed,
	),
	domain.OrderStatusPartiallyFilled: set(
		domain.OrderStatusPartiallyFilled,
		domain.OrderStatusFilled,
		domain.OrderStatusCanceling,
		domain.OrderStatusCanceled,
		domain.OrderStatusExpired,
		domain.OrderStatusCancelFailed,
	),
}

func set(states ...domain.OrderStatus) map[domain.OrderStatus]struct{} {
	m := make(map[domain.OrderStatus]struct{}, len(states))
	for _, s := range states {
		m[s] = struct{}{}
	}
	return m
}

// Transition validates that from -> to is a legal walk in the order
// lifecycle diagram. A duplicate terminal event (e.g. FILLED -> FILLED) is
// idempotent and returns nil, matching spec §4.7's
// "duplicate terminal events MUST be idempotent" requirement.
func Transition(entity string, from, to domain.OrderStatus) error {
	if from == to && from.Terminal() {
		return nil
	}
	if from == to && from == domain.OrderStatusPartiallyFilled {
		return nil
	}
	allowed, ok := legal[from]
	if !ok {
		return &xerrors.StateError{From: string(from), To: string(to), Entity: entity}
	}
	if _, ok := allowed[to]; !ok {
		return &xerrors.StateError{From: string(from), To: string(to), Entity: entity}
	}
	return nil
}

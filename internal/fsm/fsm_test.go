package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/xerrors"
)

func TestTransitionLegalWalk(t *testing.T) {
	assert.NoError(t, Transition("order:1", domain.OrderStatusInitialized, domain.OrderStatusPending))
	assert.NoError(t, Transition("order:1", domain.OrderStatusPending, domain.OrderStatusAccepted))
	assert.NoError(t, Transition("order:1", domain.OrderStatusAccepted, domain.OrderStatusPartiallyFilled))
	assert.NoError(t, Transition("order:1", domain.OrderStatusPartiallyFilled, domain.OrderStatusFilled))
}

func TestTransitionIllegal(t *testing.T) {
	err := Transition("order:1", domain.OrderStatusFilled, domain.OrderStatusPending)
	assert.Error(t, err)
	var stateErr *xerrors.StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestTransitionDuplicateTerminalIsIdempotent(t *testing.T) {
	assert.NoError(t, Transition("order:1", domain.OrderStatusFilled, domain.OrderStatusFilled))
	assert.NoError(t, Transition("order:1", domain.OrderStatusCanceled, domain.OrderStatusCanceled))
}

func TestTransitionDuplicatePartialFillIsIdempotent(t *testing.T) {
	assert.NoError(t, Transition("order:1", domain.OrderStatusPartiallyFilled, domain.OrderStatusPartiallyFilled))
}

func TestTransitionFromUnknownState(t *testing.T) {
	err := Transition("order:1", domain.OrderStatusExpired, domain.OrderStatusPending)
	assert.Error(t, err)
}

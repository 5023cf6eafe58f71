// Package clock centralizes timestamping and identifier generation so the
// rest of the runtime never calls time.Now or uuid.New directly, keeping
// those seams fake-able in tests.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// NowMs returns the current wall-clock time as Unix milliseconds, the unit
// every venue wire format and internal timestamp field uses.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// NewUUID returns a fresh local order/position identifier.
func NewUUID() string {
	return uuid.NewString()
}

// NewAlgoUUID returns a fresh TWAP/VWAP parent identifier, always prefixed
// "ALGO-" per the AlgoOrder data model.
func NewAlgoUUID() string {
	return "ALGO-" + uuid.NewString()
}

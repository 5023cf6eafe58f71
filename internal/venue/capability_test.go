package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSignedAmountLongAlwaysPositive(t *testing.T) {
	assert.Equal(t, 1.5, ResolveSignedAmount("long", 1.5))
	assert.Equal(t, 1.5, ResolveSignedAmount("long", -1.5))
}

func TestResolveSignedAmountShortAlwaysNegative(t *testing.T) {
	assert.Equal(t, -1.5, ResolveSignedAmount("short", 1.5))
	assert.Equal(t, -1.5, ResolveSignedAmount("short", -1.5))
}

func TestResolveSignedAmountNetPreservesRawSign(t *testing.T) {
	assert.Equal(t, 1.5, ResolveSignedAmount("net", 1.5))
	assert.Equal(t, -1.5, ResolveSignedAmount("net", -1.5))
}

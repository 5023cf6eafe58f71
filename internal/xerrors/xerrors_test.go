package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportErrorUnwrapsToUnderlyingCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &TransportError{Op: "GET /order", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "GET /order")
}

func TestClientAndServerErrorsCarryStatusCode(t *testing.T) {
	ce := &ClientError{StatusCode: 400, VenueCode: -1013, Body: "bad quantity"}
	assert.Contains(t, ce.Error(), "400")
	assert.Contains(t, ce.Error(), "-1013")

	se := &ServerError{StatusCode: 503, Body: "maintenance"}
	assert.Contains(t, se.Error(), "503")
}

func TestStateErrorIsDiscoverableViaErrorsAs(t *testing.T) {
	var err error = &StateError{From: "PENDING", To: "PENDING", Entity: "order:u1"}

	var se *StateError
	require := assert.New(t)
	require.True(errors.As(err, &se))
	require.Equal("PENDING", se.From)
}

func TestConfigAndAuthErrorsUnwrap(t *testing.T) {
	cause := errors.New("missing field")
	cfgErr := &ConfigError{Field: "sqlite_path", Err: cause}
	assert.ErrorIs(t, cfgErr, cause)

	authCause := errors.New("signature mismatch")
	authErr := &AuthError{Venue: "OKX", Err: authCause}
	assert.ErrorIs(t, authErr, authCause)
}

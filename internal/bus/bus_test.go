package bus

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesSubscribersInRegistrationOrder(t *testing.T) {
	b := New(zerolog.Nop())
	var order []int
	b.Subscribe(TopicTrade, func(msg any) { order = append(order, 1) })
	b.Subscribe(TopicTrade, func(msg any) { order = append(order, 2) })

	b.Publish(TopicTrade, "tick")

	assert.Equal(t, []int{1, 2}, order)
}

func TestSendReturnsHandlerResult(t *testing.T) {
	b := New(zerolog.Nop())
	require.NoError(t, b.Register(EndpointAccepted, func(msg any) any { return msg.(int) * 2 }))

	result := b.Send(EndpointAccepted, 21)
	assert.Equal(t, 42, result)
}

func TestRegisterTwiceOnSameEndpointErrors(t *testing.T) {
	b := New(zerolog.Nop())
	require.NoError(t, b.Register(EndpointFilled, func(msg any) any { return nil }))
	err := b.Register(EndpointFilled, func(msg any) any { return nil })
	assert.Error(t, err)
}

func TestSendToUnregisteredEndpointReturnsNil(t *testing.T) {
	b := New(zerolog.Nop())
	result := b.Send("nothing-here", 1)
	assert.Nil(t, result)
}

func TestReentrantPublishFromHandlerIsDeferred(t *testing.T) {
	b := New(zerolog.Nop())
	var order []string

	b.Subscribe(TopicTrade, func(msg any) {
		order = append(order, "trade")
		b.Publish(TopicKline, "nested")
	})
	b.Subscribe(TopicKline, func(msg any) {
		order = append(order, "kline")
	})

	b.Publish(TopicTrade, "tick")

	assert.Equal(t, []string{"trade", "kline"}, order)
}

func TestHandlerPanicIsRecoveredAndDoesNotBlockDispatcher(t *testing.T) {
	b := New(zerolog.Nop())
	var secondCalled bool

	b.Subscribe(TopicTrade, func(msg any) { panic("boom") })
	b.Subscribe(TopicTrade, func(msg any) { secondCalled = true })

	assert.NotPanics(t, func() { b.Publish(TopicTrade, "tick") })
	assert.True(t, secondCalled)
}

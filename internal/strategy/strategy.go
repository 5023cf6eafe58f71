// Package strategy implements the callback host from spec §4.11: the
// surface user strategies implement, a submission helper bound to an
// EMS, and a cooperative scheduler for periodic jobs.
package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/domain"
)

// Callbacks is the interface a strategy implements; Host invokes only the
// methods relevant to subscribed topics/endpoints. Embedding NoOp gives a
// strategy a default no-op for callbacks it does not care about.
type Callbacks interface {
	OnBookL1(*domain.BookL1)
	OnTrade(*domain.Trade)
	OnKline(*domain.Kline)
	OnPendingOrder(*domain.Order)
	OnAcceptedOrder(*domain.Order)
	OnPartiallyFilledOrder(*domain.Order)
	OnFilledOrder(*domain.Order)
	OnCancelingOrder(*domain.Order)
	OnCanceledOrder(*domain.Order)
	OnFailedOrder(*domain.Order)
	OnCancelFailedOrder(*domain.Order)
	OnBalance(*domain.Balance)
	OnPosition(*domain.Position)
}

// NoOp implements Callbacks with empty bodies; embed it to override only
// the handlers a strategy actually needs.
type NoOp struct{}

func (NoOp) OnBookL1(*domain.BookL1)                     {}
func (NoOp) OnTrade(*domain.Trade)                       {}
func (NoOp) OnKline(*domain.Kline)                       {}
func (NoOp) OnPendingOrder(*domain.Order)                {}
func (NoOp) OnAcceptedOrder(*domain.Order)                {}
func (NoOp) OnPartiallyFilledOrder(*domain.Order)         {}
func (NoOp) OnFilledOrder(*domain.Order)                  {}
func (NoOp) OnCancelingOrder(*domain.Order)               {}
func (NoOp) OnCanceledOrder(*domain.Order)                {}
func (NoOp) OnFailedOrder(*domain.Order)                  {}
func (NoOp) OnCancelFailedOrder(*domain.Order)            {}
func (NoOp) OnBalance(*domain.Balance)                    {}
func (NoOp) OnPosition(*domain.Position)                  {}

// Submitter places an OrderSubmit onto the correct venue's EMS.
type Submitter interface {
	SubmitOrder(submit domain.OrderSubmit, accountType string) (string, error)
}

// Host wires a strategy's Callbacks to the bus and provides submission
// helpers plus a cooperative periodic-job scheduler.
type Host struct {
	log       zerolog.Logger
	bus       *bus.Bus
	callbacks Callbacks
	submitter Submitter
}

func New(log zerolog.Logger, b *bus.Bus, callbacks Callbacks, submitter Submitter) *Host {
	return &Host{
		log:       log.With().Str("component", "strategy_host").Logger(),
		bus:       b,
		callbacks: callbacks,
		submitter: submitter,
	}
}

// Subscribe wires every bus topic/endpoint to the corresponding Callbacks
// method. Must be called once before the bus starts dispatching events.
func (h *Host) Subscribe() {
	h.bus.Subscribe(bus.TopicBookL1, func(msg any) { h.callbacks.OnBookL1(msg.(*domain.BookL1)) })
	h.bus.Subscribe(bus.TopicTrade, func(msg any) { h.callbacks.OnTrade(msg.(*domain.Trade)) })
	h.bus.Subscribe(bus.TopicKline, func(msg any) { h.callbacks.OnKline(msg.(*domain.Kline)) })

	h.bus.Subscribe(bus.EndpointPending, func(msg any) { h.callbacks.OnPendingOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointAccepted, func(msg any) { h.callbacks.OnAcceptedOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointPartiallyFilled, func(msg any) { h.callbacks.OnPartiallyFilledOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointFilled, func(msg any) { h.callbacks.OnFilledOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointCanceling, func(msg any) { h.callbacks.OnCancelingOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointCanceled, func(msg any) { h.callbacks.OnCanceledOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointFailed, func(msg any) { h.callbacks.OnFailedOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointCancelFailed, func(msg any) { h.callbacks.OnCancelFailedOrder(msg.(*domain.Order)) })
	h.bus.Subscribe(bus.EndpointBalance, func(msg any) { h.callbacks.OnBalance(msg.(*domain.Balance)) })
	h.bus.Subscribe(bus.TopicPosition, func(msg any) { h.callbacks.OnPosition(msg.(*domain.Position)) })
}

// Submit constructs an OrderSubmit and forwards it to the chosen EMS.
func (h *Host) Submit(submit domain.OrderSubmit, accountType string) (string, error) {
	return h.submitter.SubmitOrder(submit, accountType)
}

// Every registers fn to run on a fixed interval, on the same cooperative
// loop as the bus (spec §4.11's scheduler). Returns a stop func.
func (h *Host) Every(ctx context.Context, interval time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	// Each tick is published on the bus so fn runs inside bus dispatch,
	// serialized with every other handler; the payload picks out this job.
	const topic = "strategy.every"
	h.bus.Subscribe(topic, func(msg any) {
		if ch, ok := msg.(chan struct{}); ok && ch == done {
			h.safeRun(fn)
		}
	})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				h.bus.Publish(topic, done)
			}
		}
	}()
	return func() { close(done) }
}

func (h *Host) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("scheduled job panicked")
		}
	}()
	fn()
}

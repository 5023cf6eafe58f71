// Package bus implements the in-process message fabric described in spec
// §4.3: a topic publish/subscribe surface (multiple subscribers per topic,
// invocation order = registration order) and an endpoint request/response
// surface (exactly one handler per endpoint). All dispatch runs on a single
// cooperative goroutine; publishing from inside a handler enqueues for
// after the current handler returns, so a causally-triggered publish can
// never re-enter the dispatcher and can never reorder ahead of the event
// that caused it.
package bus

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Topic names used by the core (spec §4.3).
const (
	TopicTrade    = "trade"
	TopicBookL1   = "bookl1"
	TopicKline    = "kline"
	TopicPosition = "position"
	TopicAlgo     = "algo"
)

// Endpoint names used by the core.
const (
	EndpointPending         = "pending"
	EndpointAccepted        = "accepted"
	EndpointPartiallyFilled = "partially_filled"
	EndpointFilled          = "filled"
	EndpointCanceling       = "canceling"
	EndpointCanceled        = "canceled"
	EndpointFailed          = "failed"
	EndpointCancelFailed    = "cancel_failed"
	EndpointBalance         = "balance"
)

type subscriber struct {
	handler func(msg any)
}

type job struct {
	kind    jobKind
	topic   string
	msg     any
	reply   chan any
	payload any
}

type jobKind int

const (
	jobPublish jobKind = iota
	jobSend
)

// Bus is the single-threaded dispatcher. Zero value is not usable; use New.
type Bus struct {
	log zerolog.Logger

	mu          sync.Mutex
	topics      map[string][]*subscriber
	endpoints   map[string]func(msg any) any
	queue       *list.List
	dispatching bool
}

// New creates a ready-to-use Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:       log.With().Str("component", "bus").Logger(),
		topics:    make(map[string][]*subscriber),
		endpoints: make(map[string]func(msg any) any),
		queue:     list.New(),
	}
}

// Subscribe registers handler on topic. Handlers on the same topic are
// invoked in registration order.
func (b *Bus) Subscribe(topic string, handler func(msg any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append(b.topics[topic], &subscriber{handler: handler})
}

// Register binds handler to endpoint. Registering twice on the same
// endpoint is an error: exactly one handler per endpoint is allowed.
func (b *Bus) Register(endpoint string, handler func(msg any) any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.endpoints[endpoint]; exists {
		return fmt.Errorf("bus: endpoint %q already has a registered handler", endpoint)
	}
	b.endpoints[endpoint] = handler
	return nil
}

// Publish delivers msg to every subscriber of topic, in registration order.
// If called from within a handler currently being dispatched, the publish
// is deferred until the in-flight dispatch returns (spec §4.3/§5 ordering
// guarantee).
func (b *Bus) Publish(topic string, msg any) {
	b.enqueue(job{kind: jobPublish, topic: topic, msg: msg})
}

// Send invokes the single handler registered at endpoint and returns its
// result. Like Publish, a Send issued from inside a handler is deferred.
func (b *Bus) Send(endpoint string, msg any) any {
	reply := make(chan any, 1)
	b.enqueue(job{kind: jobSend, topic: endpoint, msg: msg, reply: reply})
	return <-reply
}

// enqueue appends j to the pending queue and, if no dispatch is currently
// running on this goroutine, drains the queue synchronously. Re-entrant
// calls made from inside dispatch (handler calling Publish/Send) only
// append; the outer drain loop picks the job up afterwards.
func (b *Bus) enqueue(j job) {
	b.mu.Lock()
	b.queue.PushBack(j)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	b.mu.Unlock()

	b.drain()
}

func (b *Bus) drain() {
	for {
		b.mu.Lock()
		front := b.queue.Front()
		if front == nil {
			b.dispatching = false
			b.mu.Unlock()
			return
		}
		b.queue.Remove(front)
		b.mu.Unlock()

		j := front.Value.(job)
		b.dispatchOne(j)
	}
}

func (b *Bus) dispatchOne(j job) {
	switch j.kind {
	case jobPublish:
		b.mu.Lock()
		subs := append([]*subscriber(nil), b.topics[j.topic]...)
		b.mu.Unlock()
		for _, s := range subs {
			b.safeInvoke(j.topic, func() { s.handler(j.msg) })
		}
	case jobSend:
		b.mu.Lock()
		handler, ok := b.endpoints[j.topic]
		b.mu.Unlock()
		if !ok {
			b.log.Warn().Str("endpoint", j.topic).Msg("send to unregistered endpoint")
			j.reply <- nil
			return
		}
		var result any
		b.safeInvoke(j.topic, func() { result = handler(j.msg) })
		j.reply <- result
	}
}

// safeInvoke recovers a handler panic so one misbehaving subscriber never
// kills the dispatcher loop, mirroring spec §4.1's "all handler exceptions
// are caught and logged, never propagated" rule applied to bus delivery.
func (b *Bus) safeInvoke(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("at", where).Interface("panic", r).Msg("bus handler panicked")
		}
	}()
	fn()
}

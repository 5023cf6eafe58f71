// Package wsclient implements the reconnecting, auto-pinging WebSocket
// client described in spec §4.1: a supervisor loop that connects,
// resubscribes every remembered subscription in insertion order, waits for
// disconnect, backs off, and repeats. Subscriptions are idempotent and
// outgoing frames are gated by a token bucket.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/ratelimit"
)

// PingPolicy selects when the client sends keepalive pings.
type PingPolicy int

const (
	// PingWhenIdle sends a ping only if no traffic was observed within
	// IdleTimeout.
	PingWhenIdle PingPolicy = iota
	// PingPeriodically sends a ping every PingInterval regardless of traffic.
	PingPeriodically
)

// Config configures one reconnecting connection.
type Config struct {
	URL               string
	ReconnectInterval time.Duration
	PingPolicy        PingPolicy
	PingInterval      time.Duration // used by PingPeriodically
	IdleTimeout       time.Duration // used by PingWhenIdle
	ReplyTimeout      time.Duration // max wait for a pong before forcing reconnect
	// AppPingPayload, when set, is sent as a TEXT frame in place of the
	// protocol-level ping (some venues, e.g. OKX, require "ping"/"pong"
	// text frames instead of WS control frames).
	AppPingPayload []byte
	AppPongPayload []byte
	// SubscribeRate gates outgoing subscribe frames (e.g. 3/s for Binance).
	SubscribeRate float64
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = 2 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 10 * time.Second
	}
	if c.SubscribeRate == 0 {
		c.SubscribeRate = 3
	}
	return c
}

// Handler processes an inbound TEXT/BINARY frame. Decoding is the caller's
// responsibility, to allow zero-copy typed parsers per venue.
type Handler func(frame []byte)

// Client is a single reconnecting WebSocket connection with remembered
// subscriptions.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	handler Handler
	limiter *ratelimit.Limiter

	mu           sync.Mutex
	conn         *websocket.Conn
	subs         []string // insertion-ordered, for exact resubscribe replay
	subSet       map[string]struct{}
	frameBuilder FrameFunc

	lastTraffic time.Time
	sendMu      sync.Mutex
}

// New creates a Client. handler is invoked on the connection's read
// goroutine for every TEXT/BINARY frame.
func New(cfg Config, log zerolog.Logger, handler Handler) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		log:     log.With().Str("component", "wsclient").Str("url", cfg.URL).Logger(),
		handler: handler,
		limiter: ratelimit.New(cfg.SubscribeRate),
		subSet:  make(map[string]struct{}),
	}
}

// Run is the supervisor loop: connect -> resubscribe all -> serve until
// disconnect -> sleep ReconnectInterval -> repeat. It returns only when ctx
// is cancelled.
func (c *Client) Run(ctx context.Context) error {
	boff := backoff.NewExponentialBackOff()
	boff.MaxInterval = 30 * time.Second
	boff.InitialInterval = c.cfg.ReconnectInterval

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.log.Error().Err(err).Msg("dial failed")
			if !c.sleep(ctx, boff.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.lastTraffic = time.Now()
		c.mu.Unlock()
		boff.Reset()

		if err := c.resubscribeAll(ctx); err != nil {
			c.log.Error().Err(err).Msg("resubscribe after connect failed")
		}

		c.serve(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.sleep(ctx, c.cfg.ReconnectInterval) {
			return ctx.Err()
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// serve runs the read loop and keepalive loop for one connection instance
// until either exits, then returns (triggering the outer reconnect).
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	conn.SetPingHandler(func(payload string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		c.readLoop(connCtx, conn)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		c.keepaliveLoop(connCtx, conn)
	}()

	<-done
	cancel()
	<-done
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err) {
				ce := &websocket.CloseError{}
				if errors.As(err, &ce) {
					c.log.Warn().Int("code", ce.Code).Str("reason", ce.Text).Msg("close frame received")
				}
			} else if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("read error, reconnecting")
			}
			return
		}
		c.touch()

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		if c.cfg.AppPingPayload != nil && string(data) == string(c.cfg.AppPongPayload) {
			continue
		}

		c.safeHandle(data)
	}
}

func (c *Client) safeHandle(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("frame handler panicked")
		}
	}()
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastTraffic = time.Now()
	c.mu.Unlock()
}

// keepaliveLoop implements the ping_when_idle / ping_periodically policy
// and fails the connection (returns, forcing reconnect) if no pong is
// observed within ReplyTimeout.
func (c *Client) keepaliveLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastPing := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			idleFor := time.Since(c.lastTraffic)
			c.mu.Unlock()

			shouldPing := false
			switch c.cfg.PingPolicy {
			case PingWhenIdle:
				shouldPing = idleFor >= c.cfg.IdleTimeout
			case PingPeriodically:
				shouldPing = time.Since(lastPing) >= c.cfg.PingInterval
			}
			if !shouldPing {
				continue
			}

			if err := c.sendPing(conn); err != nil {
				c.log.Warn().Err(err).Msg("ping send failed")
				return
			}
			lastPing = time.Now()

			// Fail the connection if no traffic (including the pong we
			// expect) arrives within ReplyTimeout.
			deadline := time.Now().Add(c.cfg.ReplyTimeout)
			for time.Now().Before(deadline) {
				c.mu.Lock()
				ok := c.lastTraffic.After(time.Now().Add(-c.cfg.ReplyTimeout))
				c.mu.Unlock()
				if ok {
					break
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			c.mu.Lock()
			stale := time.Since(c.lastTraffic) >= c.cfg.ReplyTimeout
			c.mu.Unlock()
			if stale {
				c.log.Warn().Msg("pong reply timeout, forcing reconnect")
				return
			}
		}
	}
}

func (c *Client) sendPing(conn *websocket.Conn) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.cfg.AppPingPayload != nil {
		return conn.WriteMessage(websocket.TextMessage, c.cfg.AppPingPayload)
	}
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Send writes an arbitrary TEXT payload, serialized against concurrent
// writers.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("wsclient: not connected")
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Subscribe remembers channel and sends frame via sender, gated by the
// subscribe rate limiter. Idempotent: a repeat Subscribe for an
// already-remembered channel is a logged no-op, never a duplicate frame.
func (c *Client) Subscribe(ctx context.Context, channel string, frame []byte) error {
	c.mu.Lock()
	if _, exists := c.subSet[channel]; exists {
		c.mu.Unlock()
		c.log.Debug().Str("channel", channel).Msg("subscribe: already subscribed, no-op")
		return nil
	}
	c.subSet[channel] = struct{}{}
	c.subs = append(c.subs, channel)
	c.mu.Unlock()

	return c.sendSubscribeFrame(ctx, channel, frame)
}

func (c *Client) sendSubscribeFrame(ctx context.Context, channel string, frame []byte) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	return c.Send(ctx, frame)
}

// FrameFunc builds the subscribe wire frame for a remembered channel name,
// used during resubscribe replay (the caller supplies venue-specific
// encoding via SetFrameBuilder).
type FrameFunc func(channel string) []byte

// SetFrameBuilder installs the function used to rebuild subscribe frames
// on resubscribe. Must be called before Run.
func (c *Client) SetFrameBuilder(f FrameFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameBuilder = f
}

// SetHandler installs the frame handler, allowing construction order to
// break the cycle between a connector and the wsclient it owns (the
// connector needs an already-built Client to pass to its own
// constructor, but the handler closes over the connector).
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Close tears down the active connection, if any, forcing the supervisor
// loop to observe a disconnect and reconnect on its normal schedule.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) resubscribeAll(ctx context.Context) error {
	c.mu.Lock()
	builder := c.frameBuilder
	subs := append([]string(nil), c.subs...)
	c.mu.Unlock()

	if builder == nil {
		return nil
	}
	for _, channel := range subs {
		if err := c.sendSubscribeFrame(ctx, channel, builder(channel)); err != nil {
			return fmt.Errorf("resubscribe %s: %w", channel, err)
		}
	}
	return nil
}

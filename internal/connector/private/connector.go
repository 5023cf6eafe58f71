// Package private implements the per-(venue, account_type) private
// connector from spec §4.7: listen-key lifecycle, order/position/balance
// event application through the registry, FSM, and cache, and outgoing
// order operations gated by the rate limiter.
package private

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/cache"
	"github.com/lavumi/nexustrader/internal/clock"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/fsm"
	"github.com/lavumi/nexustrader/internal/ratelimit"
	"github.com/lavumi/nexustrader/internal/registry"
	"github.com/lavumi/nexustrader/internal/restclient"
	"github.com/lavumi/nexustrader/internal/venue"
	"github.com/lavumi/nexustrader/internal/wsclient"
)

// parseDecimal tolerates empty wire strings, which several venues send for
// fields that do not apply to a given event (e.g. no fee on a NEW order).
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// RequestSpec describes one outgoing REST call in venue-neutral terms;
// venue wiring supplies a builder that turns an OrderSubmit into one of
// these, keeping the connector itself free of per-venue path/body logic.
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Signed bool
}

// RequestBuilder constructs the outgoing REST call for a submit.
type RequestBuilder func(submit domain.OrderSubmit) RequestSpec

// ListenKeyClient is implemented by venues that require an explicit
// listen-key lifecycle (Binance); venues that multiplex private channels
// over a signed WS login (OKX, Bybit) leave this nil.
type ListenKeyClient interface {
	Acquire(ctx context.Context) (string, error)
	Keepalive(ctx context.Context, key string) error
	Interval() time.Duration
}

// Connector is one private-channel connection to a single
// (venue, account_type) pair.
type Connector struct {
	log zerolog.Logger

	Venue       domain.Venue
	AccountType string

	ws          *wsclient.Client
	rest        *restclient.Client
	capability  venue.Capability
	bus         *bus.Bus
	cache       *cache.Cache
	registry    *registry.Registry
	rateLimiter *ratelimit.Limiter
	listenKey   ListenKeyClient
	buildOrder  RequestBuilder
	buildCancel RequestBuilder
}

type Option func(*Connector)

func WithListenKey(lk ListenKeyClient) Option { return func(c *Connector) { c.listenKey = lk } }

func New(
	log zerolog.Logger,
	v domain.Venue,
	accountType string,
	ws *wsclient.Client,
	rest *restclient.Client,
	venueCapability venue.Capability,
	b *bus.Bus,
	ch *cache.Cache,
	reg *registry.Registry,
	rl *ratelimit.Limiter,
	buildOrder, buildCancel RequestBuilder,
	opts ...Option,
) *Connector {
	c := &Connector{
		log:         log.With().Str("component", "private_connector").Str("venue", string(v)).Str("account_type", accountType).Logger(),
		Venue:       v,
		AccountType: accountType,
		ws:          ws,
		rest:        rest,
		capability:  venueCapability,
		bus:         b,
		cache:       ch,
		registry:    reg,
		rateLimiter: rl,
		buildOrder:  buildOrder,
		buildCancel: buildCancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	rest.SetSigner(venueCapability.SignQuery)
	ws.SetHandler(c.handleFrame)
	return c
}

// Connect acquires a listen key when the connector was built with a
// ListenKeyClient and logs it. It does not open the WS stream (the
// wsclient's own Run does), start KeepaliveLoop, or fetch a REST snapshot
// of balances or positions.
func (c *Connector) Connect(ctx context.Context) error {
	if c.listenKey != nil {
		key, err := c.listenKey.Acquire(ctx)
		if err != nil {
			return err
		}
		c.log.Info().Str("listen_key", key).Msg("acquired listen key")
	}
	return nil
}

// KeepaliveLoop refreshes the listen key on its required cadence until
// ctx is cancelled; reacquisition on rejection is logged, never fatal to
// the connector itself.
func (c *Connector) KeepaliveLoop(ctx context.Context, key string) error {
	if c.listenKey == nil {
		return nil
	}
	ticker := time.NewTicker(c.listenKey.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.listenKey.Keepalive(ctx, key); err != nil {
				c.log.Warn().Err(err).Msg("listen key keepalive failed, reacquiring")
				newKey, reerr := c.listenKey.Acquire(ctx)
				if reerr != nil {
					c.log.Error().Err(reerr).Msg("listen key reacquire failed")
					continue
				}
				key = newKey
			}
		}
	}
}

func (c *Connector) handleFrame(frame []byte) {
	if ou, err := c.capability.DecodeOrderUpdate(frame); err != nil {
		c.log.Warn().Err(err).Msg("decode order update failed")
	} else if ou != nil {
		c.applyOrderUpdate(ou)
	}

	if pus, err := c.capability.DecodePositionUpdate(frame); err != nil {
		c.log.Warn().Err(err).Msg("decode position update failed")
	} else if len(pus) > 0 {
		c.applyPositionUpdates(pus)
	}

	if balances, err := c.capability.DecodeBalanceUpdate(frame); err != nil {
		c.log.Warn().Err(err).Msg("decode balance update failed")
	} else if len(balances) > 0 {
		c.applyBalanceUpdates(balances)
	}
}

var endpointByStatus = map[domain.OrderStatus]string{
	domain.OrderStatusPending:         "pending",
	domain.OrderStatusAccepted:        "accepted",
	domain.OrderStatusPartiallyFilled: "partially_filled",
	domain.OrderStatusFilled:          "filled",
	domain.OrderStatusCanceling:       "canceling",
	domain.OrderStatusCanceled:        "canceled",
	domain.OrderStatusFailed:          "failed",
	domain.OrderStatusCancelFailed:    "cancel_failed",
}

func (c *Connector) applyOrderUpdate(ou *venue.OrderUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	uuid := c.registry.UUIDForVenueID(ctx, ou.VenueOrderID)

	existing, had := c.cache.Order(uuid)
	if had && existing.Status.Terminal() && existing.Status == ou.Status {
		return // duplicate terminal event: idempotent no-op per spec §4.7
	}

	from := domain.OrderStatusInitialized
	if had {
		from = existing.Status
	}
	if err := fsm.Transition("order:"+uuid, from, ou.Status); err != nil {
		c.log.Warn().Err(err).Str("uuid", uuid).Msg("illegal order transition, dropping event")
		return
	}

	amount := parseDecimal(ou.Amount)
	filled := parseDecimal(ou.Filled)
	o := &domain.Order{
		UUID:            uuid,
		ExchangeOrderID: ou.VenueOrderID,
		ClientOrderID:   ou.ClientOrderID,
		Exchange:        c.Venue,
		AccountType:     c.AccountType,
		Symbol:          ou.Symbol,
		Side:            ou.Side,
		Type:            ou.Type,
		TimeInForce:     ou.TimeInForce,
		Amount:          amount,
		Price:           parseDecimal(ou.Price),
		Filled:          filled,
		Remaining:       amount.Sub(filled),
		Average:         parseDecimal(ou.AvgPrice),
		LastFilled:      parseDecimal(ou.LastFilled),
		LastFilledPrice: parseDecimal(ou.LastFilledPrice),
		Fee:             parseDecimal(ou.Fee),
		FeeCurrency:     ou.FeeCurrency,
		CumCost:         parseDecimal(ou.CumCost),
		ReduceOnly:      ou.ReduceOnly,
		PositionSide:    ou.PositionSide,
		Status:          ou.Status,
		Timestamp:       ou.Timestamp,
	}
	c.cache.ApplyOrder(o)

	if endpoint, ok := endpointByStatus[o.Status]; ok {
		c.bus.Publish(endpoint, o.Clone())
	}
}

func (c *Connector) applyPositionUpdates(updates []venue.PositionUpdate) {
	for _, pu := range updates {
		magnitude := parseFloat(pu.Amount)
		signed := venue.ResolveSignedAmount(pu.PosSide, magnitude)
		p := &domain.Position{
			Symbol:        pu.Symbol,
			Exchange:      c.Venue,
			SignedAmount:  decimalFromFloat(signed),
			EntryPrice:    parseDecimal(pu.EntryPrice),
			Side:          domain.SideFromSigned(decimalFromFloat(signed)),
			UnrealizedPnL: parseDecimal(pu.UnrealizedPnL),
		}
		c.cache.ApplyPosition(c.Venue, p)
		c.bus.Publish(bus.TopicPosition, p)
	}
}

func (c *Connector) applyBalanceUpdates(updates []venue.BalanceUpdate) {
	for _, bu := range updates {
		b := &domain.Balance{Asset: bu.Asset, Free: parseDecimal(bu.Free), Locked: parseDecimal(bu.Locked)}
		c.cache.ApplyBalance(c.AccountType, b)
		c.bus.Publish(bus.EndpointBalance, b)
	}
}

// CreateOrder implements the spec §4.7 outgoing create path: rate-limit,
// POST, and construct a PENDING Order on success or a FAILED Order on
// error. It never panics into the caller.
func (c *Connector) CreateOrder(ctx context.Context, submit domain.OrderSubmit) (*domain.Order, error) {
	return c.dispatch(ctx, submit, c.buildOrder, false)
}

// CancelOrder implements the spec §4.7 outgoing cancel path. A successful
// REST ack only means the venue has accepted the cancel request, not that
// the order is gone, so the target order moves to CANCELING (matching
// the ground-truth OKX connector's cancel_order, not PENDING/FAILED).
func (c *Connector) CancelOrder(ctx context.Context, submit domain.OrderSubmit) (*domain.Order, error) {
	return c.dispatch(ctx, submit, c.buildCancel, true)
}

// dispatch sends a build-described REST request and applies its outcome to
// the target order through the FSM, keyed by the order's own uuid (the
// submit's uuid for CREATE, submit.CancelOrderUUID for CANCEL since the
// cancel submit carries its own distinct uuid).
func (c *Connector) dispatch(ctx context.Context, submit domain.OrderSubmit, build RequestBuilder, isCancel bool) (*domain.Order, error) {
	targetUUID := submit.UUID
	successStatus, failStatus := domain.OrderStatusPending, domain.OrderStatusFailed
	if isCancel {
		targetUUID = submit.CancelOrderUUID
		successStatus, failStatus = domain.OrderStatusCanceling, domain.OrderStatusCancelFailed
	}

	c.registry.Register(submit.UUID)

	if err := c.rateLimiter.Acquire(ctx); err != nil {
		return c.failedOrder(submit, targetUUID, failStatus), err
	}

	spec := build(submit)
	var out any
	if err := c.rest.Request(ctx, spec.Method, spec.Path, spec.Query, spec.Body, spec.Signed, &out); err != nil {
		c.log.Warn().Err(err).Str("uuid", submit.UUID).Msg("order request failed")
		return c.failedOrder(submit, targetUUID, failStatus), err
	}

	from := domain.OrderStatusInitialized
	if existing, had := c.cache.Order(targetUUID); had {
		from = existing.Status
	}
	if err := fsm.Transition("order:"+targetUUID, from, successStatus); err != nil {
		c.log.Warn().Err(err).Str("uuid", targetUUID).Msg("illegal order transition, dropping acknowledgement")
		return c.failedOrder(submit, targetUUID, failStatus), err
	}

	o := &domain.Order{
		UUID:         targetUUID,
		Exchange:     submit.Exchange,
		AccountType:  submit.AccountType,
		Symbol:       submit.Symbol,
		Side:         submit.Side,
		Type:         submit.Type,
		TimeInForce:  submit.TimeInForce,
		Amount:       submit.Amount,
		Price:        submit.Price,
		ReduceOnly:   submit.ReduceOnly,
		PositionSide: submit.PositionSide,
		Status:       successStatus,
		Timestamp:    clock.NowMs(),
	}
	c.cache.ApplyOrder(o)
	if endpoint, ok := endpointByStatus[o.Status]; ok {
		c.bus.Publish(endpoint, o.Clone())
	}
	return o, nil
}

func (c *Connector) failedOrder(submit domain.OrderSubmit, targetUUID string, status domain.OrderStatus) *domain.Order {
	o := &domain.Order{
		UUID:        targetUUID,
		Exchange:    submit.Exchange,
		AccountType: submit.AccountType,
		Symbol:      submit.Symbol,
		Side:        submit.Side,
		Status:      status,
		Timestamp:   clock.NowMs(),
	}
	c.cache.ApplyOrder(o)
	if endpoint, ok := endpointByStatus[o.Status]; ok {
		c.bus.Publish(endpoint, o.Clone())
	}
	return o
}

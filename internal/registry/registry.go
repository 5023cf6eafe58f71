// Package registry implements the bidirectional uuid <-> venue order id
// map described in spec §4.10: a fast WS ack can arrive before the REST
// POST response has registered the local uuid, so lookup-by-venue-id
// blocks briefly rather than failing outright.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/clock"
)

const defaultTimeout = 2 * time.Second

type entry struct {
	uuid         string
	venueOrderID string
	ready        chan struct{}
	closeOnce    sync.Once
}

func newEntry(uuid string) *entry {
	return &entry{uuid: uuid, ready: make(chan struct{})}
}

func (e *entry) complete(venueOrderID string) {
	e.closeOnce.Do(func() {
		e.venueOrderID = venueOrderID
		close(e.ready)
	})
}

// Registry maps local uuids to venue order ids and back. cmd/trader
// shares one instance across every venue's private connector; its mutex
// serializes all access.
type Registry struct {
	log     zerolog.Logger
	timeout time.Duration

	mu       sync.Mutex
	byUUID   map[string]*entry
	byVenue  map[string]*entry
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("component", "registry").Logger(),
		timeout: defaultTimeout,
		byUUID:  make(map[string]*entry),
		byVenue: make(map[string]*entry),
	}
}

// SetTimeout overrides the default registration_timeout.
func (r *Registry) SetTimeout(d time.Duration) { r.timeout = d }

// Register reserves a uuid before the outbound POST is sent, so a WS ack
// racing ahead of the HTTP response can still resolve via UUIDForVenueID.
func (r *Registry) Register(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUUID[uuid]; ok {
		return
	}
	r.byUUID[uuid] = newEntry(uuid)
}

// Bind completes the mapping once the venue order id is known, either
// from the POST response or from a WS event carrying a client_order_id
// that matches a reserved uuid.
func (r *Registry) Bind(uuid, venueOrderID string) {
	r.mu.Lock()
	e, ok := r.byUUID[uuid]
	if !ok {
		e = newEntry(uuid)
		r.byUUID[uuid] = e
	}
	r.byVenue[venueOrderID] = e
	r.mu.Unlock()
	e.complete(venueOrderID)
}

// UUIDForVenueID resolves a venue order id to its local uuid, blocking up
// to the registration timeout to let a still-pending Bind catch up. On
// timeout it synthesizes a new uuid and logs a reconciliation warning, per
// spec §4.10.
func (r *Registry) UUIDForVenueID(ctx context.Context, venueOrderID string) string {
	r.mu.Lock()
	e, ok := r.byVenue[venueOrderID]
	r.mu.Unlock()
	if ok {
		select {
		case <-e.ready:
			return e.uuid
		default:
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if ok {
		select {
		case <-e.ready:
			return e.uuid
		case <-timeoutCtx.Done():
		}
	} else {
		// Not registered at all yet: poll briefly for a late Bind.
		ticker := time.NewTicker(10 * time.Millisecond)
	pollLoop:
		for {
			select {
			case <-timeoutCtx.Done():
				break pollLoop
			case <-ticker.C:
				r.mu.Lock()
				e, ok = r.byVenue[venueOrderID]
				r.mu.Unlock()
				if ok {
					select {
					case <-e.ready:
						ticker.Stop()
						return e.uuid
					default:
					}
				}
			}
		}
		ticker.Stop()
	}

	uuid := clock.NewUUID()
	r.log.Warn().
		Str("venue_order_id", venueOrderID).
		Str("reconciled_uuid", uuid).
		Msg("reconciled unknown order")
	r.Bind(uuid, venueOrderID)
	return uuid
}

// VenueIDForUUID resolves the venue order id for a known uuid, if bound.
func (r *Registry) VenueIDForUUID(uuid string) (string, bool) {
	r.mu.Lock()
	e, ok := r.byUUID[uuid]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	select {
	case <-e.ready:
		return e.venueOrderID, true
	default:
		return "", false
	}
}

// Forget removes both directions of the mapping once an order reaches a
// terminal state and no longer needs resolution.
func (r *Registry) Forget(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUUID[uuid]
	if !ok {
		return
	}
	delete(r.byUUID, uuid)
	if e.venueOrderID != "" {
		delete(r.byVenue, e.venueOrderID)
	}
}

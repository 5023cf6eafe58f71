// Package task owns the supervised set of background goroutines (spec
// §4.5). cmd/trader registers the WS connection loops, each venue's EMS
// run loop and the cache's snapshot ticker here; the EMS starts its queue
// workers and TWAP supervisors as plain goroutines inside its own run
// loop, outside the manager. Unhandled errors are routed to
// the logger, never terminate the process, and shutdown cancels everything
// cooperatively with a bounded grace period.
package task

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Manager supervises a set of long-running goroutines sharing one
// cancellation context.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	log    zerolog.Logger
	grace  time.Duration
}

// New creates a Manager whose children are cancelled when parent is
// cancelled or Shutdown is called. grace bounds how long Shutdown waits
// for children to exit before giving up on them.
func New(parent context.Context, log zerolog.Logger, grace time.Duration) *Manager {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		log:    log.With().Str("component", "task-manager").Logger(),
		grace:  grace,
	}
}

// Context returns the manager's cancellation context; children should
// select on it to observe shutdown.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// CreateTask registers fn as a supervised goroutine. A non-nil return value
// is logged but never kills the manager or its siblings.
func (m *Manager) CreateTask(name string, fn func(ctx context.Context) error) {
	m.group.Go(func() error {
		if err := fn(m.ctx); err != nil && m.ctx.Err() == nil {
			m.log.Error().Err(err).Str("task", name).Msg("task exited with error")
		}
		return nil
	})
}

// Shutdown cancels all children cooperatively and waits up to the
// manager's grace period; survivors are dropped (the process does not
// block forever on a stuck goroutine).
func (m *Manager) Shutdown() {
	m.cancel()
	done := make(chan struct{})
	go func() {
		_ = m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.grace):
		m.log.Warn().Msg("shutdown grace period elapsed; dropping surviving tasks")
	}
}

// WaitForever blocks until the manager's context is cancelled, the surface
// the strategy host's main loop parks on (spec §4.5).
func (m *Manager) WaitForever() {
	<-m.ctx.Done()
}

// Package ems implements the per-venue Execution Management System from
// spec §4.8: per-account-type submission queues, precision adjustment,
// and the TWAP slicing engine.
package ems

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/cache"
	"github.com/lavumi/nexustrader/internal/clock"
	"github.com/lavumi/nexustrader/internal/domain"
)

// OrderExecutor is the subset of a private connector the EMS dispatches
// submissions to; implemented by internal/connector/private.Connector.
type OrderExecutor interface {
	CreateOrder(ctx context.Context, submit domain.OrderSubmit) (*domain.Order, error)
	CancelOrder(ctx context.Context, submit domain.OrderSubmit) (*domain.Order, error)
}

// MarketCatalogue resolves precision metadata for a symbol.
type MarketCatalogue interface {
	Market(symbol string) (domain.Market, bool)
}

const defaultFailureThreshold = 3

// EMS owns one venue's submission queues and TWAP supervisors.
type EMS struct {
	log zerolog.Logger

	venue           domain.Venue
	priorityOrder   []string
	executors       map[string]OrderExecutor
	queues          map[string]chan domain.OrderSubmit
	markets         MarketCatalogue
	bus             *bus.Bus
	cache           *cache.Cache
	failureThreshold int

	signalsMu     sync.Mutex
	cancelSignals map[string]chan struct{}
}

// New builds an EMS for venue, with one submission queue per account
// type present in executors. priorityOrder picks the default account
// type when a submit does not name one.
func New(log zerolog.Logger, v domain.Venue, executors map[string]OrderExecutor, priorityOrder []string, markets MarketCatalogue, b *bus.Bus, ch *cache.Cache) *EMS {
	queues := make(map[string]chan domain.OrderSubmit, len(executors))
	for accountType := range executors {
		queues[accountType] = make(chan domain.OrderSubmit, 256)
	}
	return &EMS{
		log:              log.With().Str("component", "ems").Str("venue", string(v)).Logger(),
		venue:            v,
		priorityOrder:    priorityOrder,
		executors:        executors,
		queues:           queues,
		markets:          markets,
		bus:              b,
		cache:            ch,
		failureThreshold: defaultFailureThreshold,
		cancelSignals:    make(map[string]chan struct{}),
	}
}

// primaryAccountType returns the first account type from priorityOrder
// that has a live queue, per spec §4.8's fixed priority table.
func (e *EMS) primaryAccountType() (string, error) {
	for _, at := range e.priorityOrder {
		if _, ok := e.queues[at]; ok {
			return at, nil
		}
	}
	return "", fmt.Errorf("ems: no private connector available for venue %s", e.venue)
}

// SubmitOrder places submit on the chosen queue and returns its uuid
// immediately, per spec §4.8's submission contract.
func (e *EMS) SubmitOrder(submit domain.OrderSubmit, accountType string) (string, error) {
	if submit.UUID == "" {
		if submit.SubmitType == domain.SubmitTWAP || submit.SubmitType == domain.SubmitVWAP {
			submit.UUID = clock.NewAlgoUUID()
		} else {
			submit.UUID = clock.NewUUID()
		}
	}
	if accountType == "" {
		primary, err := e.primaryAccountType()
		if err != nil {
			return "", err
		}
		accountType = primary
	}
	q, ok := e.queues[accountType]
	if !ok {
		return "", fmt.Errorf("ems: unknown account type %q", accountType)
	}
	q <- submit
	return submit.UUID, nil
}

// Run starts one worker per account-type queue; returns when ctx is
// cancelled and all workers have drained their in-flight submission.
func (e *EMS) Run(ctx context.Context) error {
	done := make(chan struct{}, len(e.queues))
	for accountType, q := range e.queues {
		go func(accountType string, q chan domain.OrderSubmit) {
			defer func() { done <- struct{}{} }()
			e.worker(ctx, accountType, q)
		}(accountType, q)
	}
	for range e.queues {
		<-done
	}
	return nil
}

func (e *EMS) worker(ctx context.Context, accountType string, q chan domain.OrderSubmit) {
	executor := e.executors[accountType]
	for {
		select {
		case <-ctx.Done():
			return
		case submit := <-q:
			e.handleSubmit(ctx, executor, submit)
		}
	}
}

func (e *EMS) handleSubmit(ctx context.Context, executor OrderExecutor, submit domain.OrderSubmit) {
	switch submit.SubmitType {
	case domain.SubmitCreate:
		e.adjustPrecision(&submit)
		if _, err := executor.CreateOrder(ctx, submit); err != nil {
			e.log.Warn().Err(err).Str("uuid", submit.UUID).Msg("create order failed")
		}
	case domain.SubmitCancel:
		if _, err := executor.CancelOrder(ctx, submit); err != nil {
			e.log.Warn().Err(err).Str("uuid", submit.UUID).Msg("cancel order failed")
		}
	case domain.SubmitTWAP, domain.SubmitVWAP:
		go e.runTWAP(ctx, executor, submit)
	case domain.SubmitCancelTWAP, domain.SubmitCancelVWAP:
		e.cancelTWAP(submit.CancelAlgoUUID)
	}
}

// adjustPrecision snaps amount/price to venue precision per spec §4.8,
// using the caller's rounding mode (banker's rounding when RoundNearest).
func (e *EMS) adjustPrecision(submit *domain.OrderSubmit) {
	market, ok := e.markets.Market(submit.Symbol)
	if !ok {
		return
	}
	submit.Amount = market.AmountToPrecision(submit.Amount, submit.RoundMode)
	if !submit.Price.IsZero() {
		submit.Price = market.PriceToPrecision(submit.Price, submit.RoundMode)
	}
}

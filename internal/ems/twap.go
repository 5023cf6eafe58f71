package ems

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/clock"
	"github.com/lavumi/nexustrader/internal/domain"
)

// runTWAP implements the slicing supervisor from spec §4.8: emits a child
// CREATE submit every WaitSec, stopping when cumulative filled reaches
// amount, the deadline elapses, or a CANCEL_TWAP arrives.
func (e *EMS) runTWAP(ctx context.Context, executor OrderExecutor, submit domain.OrderSubmit) {
	sliceCount := int(math.Max(1, math.Floor(float64(submit.DurationSec)/float64(submit.WaitSec))))

	market, hasMarket := e.markets.Market(submit.Symbol)
	sliceAmount := submit.Amount.Div(decimal.NewFromInt(int64(sliceCount)))
	if hasMarket {
		sliceAmount = market.AmountToPrecision(sliceAmount, domain.RoundFloor)
	} else {
		sliceAmount = sliceAmount.Truncate(8)
	}
	residual := submit.Amount.Sub(sliceAmount.Mul(decimal.NewFromInt(int64(sliceCount))))

	parent := &domain.AlgoOrder{
		UUID:        submit.UUID,
		Exchange:    submit.Exchange,
		AccountType: submit.AccountType,
		Symbol:      submit.Symbol,
		Side:        submit.Side,
		Amount:      submit.Amount,
		DurationSec: submit.DurationSec,
		WaitSec:     submit.WaitSec,
		Status:      domain.AlgoStatusRunning,
		Children:    nil,
		StartedAt:   clock.NowMs(),
	}
	e.cache.ApplyAlgo(parent)
	e.bus.Publish(bus.TopicAlgo, parent)

	cancelCh := make(chan struct{})
	e.registerCancelSignal(submit.UUID, cancelCh)
	defer e.unregisterCancelSignal(submit.UUID)

	deadline := time.Now().Add(time.Duration(submit.DurationSec) * time.Second)
	// The first slice goes out immediately and each later one a full wait
	// after the previous, so all sliceCount slices fit inside the duration.
	tick := time.After(0)

	var mu sync.Mutex
	var consecutiveFailures int

	childType := domain.OrderTypeMarket
	if submit.UseLimit {
		childType = domain.OrderTypeLimit
	}

	slicesIssued := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-cancelCh:
			e.cancelRemainingChildren(ctx, executor, parent)
			return
		case <-tick:
			tick = time.After(time.Duration(submit.WaitSec) * time.Second)
			if parent.Filled.GreaterThanOrEqual(submit.Amount) || time.Now().After(deadline) || slicesIssued >= sliceCount {
				parent.Status = domain.AlgoStatusFinished
				e.cache.ApplyAlgo(parent)
				e.bus.Publish(bus.TopicAlgo, parent)
				return
			}

			amount := sliceAmount
			if slicesIssued == sliceCount-1 {
				amount = amount.Add(residual)
			}
			childSubmit := domain.OrderSubmit{
				UUID:         clock.NewUUID(),
				SubmitType:   domain.SubmitCreate,
				Exchange:     submit.Exchange,
				AccountType:  submit.AccountType,
				Symbol:       submit.Symbol,
				Side:         submit.Side,
				Type:         childType,
				Price:        submit.Price,
				Amount:       amount,
				ReduceOnly:   submit.ReduceOnly,
				PositionSide: submit.PositionSide,
				RoundMode:    submit.RoundMode,
			}
			slicesIssued++
			parent.Children = append(parent.Children, childSubmit.UUID)
			e.cache.ApplyAlgo(parent)

			child, err := executor.CreateOrder(ctx, childSubmit)
			mu.Lock()
			if err != nil {
				consecutiveFailures++
				if consecutiveFailures >= e.failureThreshold {
					parent.Status = domain.AlgoStatusFailed
					e.cache.ApplyAlgo(parent)
					e.bus.Publish(bus.TopicAlgo, parent)
					mu.Unlock()
					return
				}
			} else {
				consecutiveFailures = 0
				e.aggregateChild(parent, child)
			}
			mu.Unlock()
		}
	}
}

// aggregateChild folds one child fill into the parent's running totals,
// per spec §4.8: "aggregate filled, cost, and average from children on
// every child update".
func (e *EMS) aggregateChild(parent *domain.AlgoOrder, child *domain.Order) {
	parent.Filled = parent.Filled.Add(child.Filled)
	parent.Cost = parent.Cost.Add(child.CumCost)
	if parent.Filled.IsPositive() {
		parent.Average = parent.Cost.Div(parent.Filled)
	}
	e.cache.ApplyAlgo(parent)
	e.bus.Publish(bus.TopicAlgo, parent)
}

func (e *EMS) cancelRemainingChildren(ctx context.Context, executor OrderExecutor, parent *domain.AlgoOrder) {
	parent.Status = domain.AlgoStatusCanceling
	e.cache.ApplyAlgo(parent)
	e.bus.Publish(bus.TopicAlgo, parent)

	for _, childUUID := range parent.Children {
		child, ok := e.cache.Order(childUUID)
		if !ok || child.Status.Terminal() {
			continue
		}
		_, _ = executor.CancelOrder(ctx, domain.OrderSubmit{
			UUID:            clock.NewUUID(),
			SubmitType:      domain.SubmitCancel,
			Exchange:        parent.Exchange,
			AccountType:     parent.AccountType,
			Symbol:          parent.Symbol,
			CancelOrderUUID: childUUID,
		})
	}

	parent.Status = domain.AlgoStatusCanceled
	e.cache.ApplyAlgo(parent)
	e.bus.Publish(bus.TopicAlgo, parent)
}

func (e *EMS) registerCancelSignal(uuid string, ch chan struct{}) {
	e.signalsMu.Lock()
	defer e.signalsMu.Unlock()
	e.cancelSignals[uuid] = ch
}

func (e *EMS) unregisterCancelSignal(uuid string) {
	e.signalsMu.Lock()
	defer e.signalsMu.Unlock()
	delete(e.cancelSignals, uuid)
}

// cancelTWAP signals a running TWAP supervisor to stop scheduling new
// slices and cancel open children.
func (e *EMS) cancelTWAP(algoUUID string) {
	e.signalsMu.Lock()
	ch, ok := e.cancelSignals[algoUUID]
	e.signalsMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

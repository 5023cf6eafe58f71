package domain

import "github.com/shopspring/decimal"

// OrderSide is the trade direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the execution style.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce controls how long an order rests on the book.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// PositionSide distinguishes hedge-mode legs; one-way mode uses PositionSideNet.
type PositionSide string

const (
	PositionSideNet   PositionSide = "NET"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// OrderStatus is a node in the order lifecycle FSM (spec §3).
type OrderStatus string

const (
	OrderStatusInitialized     OrderStatus = "INITIALIZED"
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceling       OrderStatus = "CANCELING"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusCancelFailed    OrderStatus = "CANCEL_FAILED"
)

// Terminal reports whether status is a terminal state: no further
// transitions are legal from it.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// Order is the venue-agnostic normalized order record.
type Order struct {
	UUID            string
	ExchangeOrderID string
	ClientOrderID   string
	Exchange        Venue
	AccountType     string
	Symbol          string
	Side            OrderSide
	Type            OrderType
	TimeInForce     TimeInForce
	Amount          decimal.Decimal
	Price           decimal.Decimal
	Filled          decimal.Decimal
	Remaining       decimal.Decimal
	Average         decimal.Decimal
	LastFilled      decimal.Decimal
	LastFilledPrice decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	Cost            decimal.Decimal
	CumCost         decimal.Decimal
	ReduceOnly      bool
	PositionSide    PositionSide
	Status          OrderStatus
	Timestamp       int64
}

// Clone returns a deep-enough copy safe to hand to a bus subscriber without
// aliasing the cache's authoritative record.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// AlgoStatus is the TWAP/VWAP parent order lifecycle.
type AlgoStatus string

const (
	AlgoStatusRunning   AlgoStatus = "RUNNING"
	AlgoStatusCanceling AlgoStatus = "CANCELING"
	AlgoStatusFinished  AlgoStatus = "FINISHED"
	AlgoStatusCanceled  AlgoStatus = "CANCELED"
	AlgoStatusFailed    AlgoStatus = "FAILED"
)

// AlgoOrder is a TWAP (or VWAP) parent order. Its UUID is always prefixed
// "ALGO-".
type AlgoOrder struct {
	UUID        string
	Exchange    Venue
	AccountType string
	Symbol      string
	Side        OrderSide
	Amount      decimal.Decimal
	DurationSec int64
	WaitSec     int64
	Status      AlgoStatus
	Children    []string
	Filled      decimal.Decimal
	Cost        decimal.Decimal
	Average     decimal.Decimal
	StartedAt   int64
	ConsecutiveChildFailures int
}

// SubmitType enumerates the kinds of work an OrderSubmit can carry.
type SubmitType string

const (
	SubmitCreate      SubmitType = "CREATE"
	SubmitCancel      SubmitType = "CANCEL"
	SubmitTWAP        SubmitType = "TWAP"
	SubmitCancelTWAP  SubmitType = "CANCEL_TWAP"
	SubmitVWAP        SubmitType = "VWAP"
	SubmitCancelVWAP  SubmitType = "CANCEL_VWAP"
)

// OrderSubmit is the strategy-authored intent handed to the EMS.
type OrderSubmit struct {
	UUID         string
	SubmitType   SubmitType
	Exchange     Venue
	AccountType  string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	TimeInForce  TimeInForce
	Amount       decimal.Decimal
	Price        decimal.Decimal
	ReduceOnly   bool
	PositionSide PositionSide
	RoundMode    RoundingMode

	// CancelOrderUUID/CancelAlgoUUID identify the target of a CANCEL /
	// CANCEL_TWAP / CANCEL_VWAP submit.
	CancelOrderUUID string
	CancelAlgoUUID  string

	// TWAP/VWAP parameters, only meaningful for SubmitTWAP/SubmitVWAP.
	DurationSec int64
	WaitSec     int64
	UseLimit    bool // marketable LIMIT instead of MARKET child slices
}

package schema

// BookSide selects the bid or ask half of an order book.
type BookSide uint16

const (
	BookSideUnknown BookSide = iota
	BookSideBid
	BookSideAsk
)

func (s BookSide) IsAvailable() bool {
	return s == BookSideBid || s == BookSideAsk
}

func (s BookSide) String() string {
	switch s {
	case BookSideBid:
		return "bid"
	case BookSideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// MarketDelta is one incremental price-level update from the ingestion side.
// ExchangeSeq is carried for observability only.
type MarketDelta struct {
	Symbol      string
	Side        BookSide
	Price       Price
	Qty         Quantity
	ExchangeSeq uint64
	TsEvent     int64
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) IsAvailable() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s OrderSide) Sign() int64 {
	switch s {
	case OrderSideBuy:
		return 1
	case OrderSideSell:
		return -1
	default:
		return 0
	}
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypeStop
)

func (t OrderType) IsAvailable() bool {
	return t >= OrderTypeLimit && t <= OrderTypeStop
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypeStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Order is the immutable intent produced by a signal source.
// LimitPrice and StopPrice are zero when absent.
type Order struct {
	OrderID    uint64
	StrategyID uint32
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Qty        Quantity
	LimitPrice Price
	StopPrice  Price
	CreatedAt  int64
}

// SignedQty returns the position delta the order would cause if fully filled.
func (o Order) SignedQty() Quantity {
	return Quantity(o.Side.Sign() * int64(o.Qty))
}

// Fill is a venue execution reported back into the risk ledger.
// Final marks the last fill of an order.
type Fill struct {
	OrderID uint64
	Symbol  string
	Side    OrderSide
	Price   Price
	Qty     Quantity
	Final   bool
	TsEvent int64
}

// RiskAction is the outcome of a risk decision.
type RiskAction uint16

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason names the check that produced a decision.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonCircuitBreakerOpen
	RiskReasonOpenPositions
	RiskReasonOrderSize
	RiskReasonPositionNotional
	RiskReasonPositionSize
	RiskReasonTotalExposure
	RiskReasonDailyLoss
	RiskReasonCorrelation
	RiskReasonNoReferencePrice
	RiskReasonInvalidOrder
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "None"
	case RiskReasonCircuitBreakerOpen:
		return "CircuitBreakerOpen"
	case RiskReasonOpenPositions:
		return "OpenPositionsExceeded"
	case RiskReasonOrderSize:
		return "OrderSizeExceeded"
	case RiskReasonPositionNotional:
		return "PositionNotionalExceeded"
	case RiskReasonPositionSize:
		return "PositionSizeExceeded"
	case RiskReasonTotalExposure:
		return "TotalExposureExceeded"
	case RiskReasonDailyLoss:
		return "DailyLossExceeded"
	case RiskReasonCorrelation:
		return "CorrelationExceeded"
	case RiskReasonNoReferencePrice:
		return "NoReferencePrice"
	case RiskReasonInvalidOrder:
		return "InvalidOrder"
	default:
		return "Unknown"
	}
}

// RiskDecision is the payload for EventRiskDecision.
// Current and Limit hold the value that failed and the configured bound.
type RiskDecision struct {
	OrderID  uint64
	Symbol   string
	Action   RiskAction
	Reason   RiskReason
	Side     OrderSide
	Qty      Quantity
	RefPrice Price
	Current  int64
	Limit    int64
	TsEvent  int64
}

// ExecutionStatus is the per-order attempt status.
type ExecutionStatus uint16

const (
	ExecutionStatusPending ExecutionStatus = iota
	ExecutionStatusSubmitted
	ExecutionStatusFilled
	ExecutionStatusPartiallyFilled
	ExecutionStatusRejected
	ExecutionStatusFailed
)

func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusFilled, ExecutionStatusPartiallyFilled, ExecutionStatusRejected, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the venue accepted the order.
func (s ExecutionStatus) IsSuccess() bool {
	switch s {
	case ExecutionStatusSubmitted, ExecutionStatusFilled, ExecutionStatusPartiallyFilled:
		return true
	default:
		return false
	}
}

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionStatusPending:
		return "Pending"
	case ExecutionStatusSubmitted:
		return "Submitted"
	case ExecutionStatusFilled:
		return "Filled"
	case ExecutionStatusPartiallyFilled:
		return "PartiallyFilled"
	case ExecutionStatusRejected:
		return "Rejected"
	case ExecutionStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ExecutionResult is the payload for EventExecutionResult.
type ExecutionResult struct {
	OrderID      uint64
	Symbol       string
	Status       ExecutionStatus
	Attempts     uint16
	FilledQty    Quantity
	AvgFillPrice Price
	VenueOrderID string
	Error        string
	TsEvent      int64
}

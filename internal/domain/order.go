package domain

import "time"

// Side is the direction of an order or fill.
type Side int

const (
	SideBid Side = iota
	SideAsk
	SideUnknown
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "Bid"
	case SideAsk:
		return "Ask"
	}
	return "Unknown"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	}
	return SideUnknown
}

// OrderType distinguishes limit from market orders.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	if t == OrderTypeMarket {
		return "Market"
	}
	return "Limit"
}

// TimeInForce is how long an order stays working on the exchange.
type TimeInForce int

const (
	TimeInForceGTC TimeInForce = iota
	TimeInForceIOC
	TimeInForceFOK
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	}
	return "GTC"
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus int

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusWorking
	OrderStatusComplete
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusOther
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "New"
	case OrderStatusWorking:
		return "Working"
	case OrderStatusComplete:
		return "Complete"
	case OrderStatusCancelled:
		return "Cancelled"
	case OrderStatusRejected:
		return "Rejected"
	}
	return "Other"
}

// IsTerminal reports whether no further updates are expected for this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusComplete, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Liquidity is the fee role of a fill: maker added resting liquidity,
// taker consumed it. The zero value means the exchange did not say.
type Liquidity int

const (
	LiquidityUnknown Liquidity = iota
	LiquidityMake
	LiquidityTake
)

func (l Liquidity) String() string {
	switch l {
	case LiquidityMake:
		return "Make"
	case LiquidityTake:
		return "Take"
	}
	return "Unknown"
}

// OrderStatusReport is the authoritative current state of one order.
// Every accepted update produces a new report merged with the prior one.
type OrderStatusReport struct {
	Pair            CurrencyPair
	Side            Side
	Quantity        float64
	Type            OrderType
	Price           float64
	TimeInForce     TimeInForce
	OrderID         string
	ExchangeID      string // empty until the venue acknowledges the order
	OrderStatus     OrderStatus
	RejectMessage   string
	Time            time.Time
	LastQuantity    float64 // quantity of the fill carried by this update, if any
	LastPrice       float64
	LeavesQuantity  float64
	CumQuantity     float64
	AveragePrice    float64
	Liquidity       Liquidity
	Exchange        string
	Version         int
	PartiallyFilled bool
	PendingCancel   bool
	PendingReplace  bool
	CancelRejected  bool
	Done            bool
}

// IsOpen reports whether the order should appear in the open-orders snapshot.
func (r OrderStatusReport) IsOpen() bool {
	return r.OrderStatus == OrderStatusNew || r.OrderStatus == OrderStatusWorking
}

// OrderStatusUpdate is a partial delta describing a change to an order:
// an ack, a fill, a cancel ack. Nil fields mean "no new information";
// the merge keeps the prior value. It is never stored.
type OrderStatusUpdate struct {
	OrderID        string
	ExchangeID     *string
	Pair           *CurrencyPair
	Side           *Side
	Quantity       *float64
	Type           *OrderType
	Price          *float64
	TimeInForce    *TimeInForce
	OrderStatus    *OrderStatus
	RejectMessage  string
	Time           *time.Time
	LastQuantity   *float64
	LastPrice      *float64
	LeavesQuantity *float64
	CumQuantity    *float64
	AveragePrice   *float64
	Liquidity      *Liquidity
	Exchange       *string
	PendingCancel  bool
	PendingReplace bool
	CancelRejected bool
	Done           bool
}

// SubmitNewOrder is a request to place a new order.
type SubmitNewOrder struct {
	Side        Side
	Quantity    float64
	Type        OrderType
	Price       float64
	TimeInForce TimeInForce
	Exchange    string
	Time        time.Time
}

// OrderCancel is a request to cancel an existing order.
type OrderCancel struct {
	OrigOrderID string    `json:"origOrderId"`
	Exchange    string    `json:"exchange"`
	Time        time.Time `json:"time"`
}

// CancelReplaceOrder is a request to amend the price and quantity of an
// existing order.
type CancelReplaceOrder struct {
	OrigOrderID string
	Quantity    float64
	Price       float64
	Exchange    string
	Time        time.Time
}

// SentOrder is the handle returned from a submit, carrying the client
// order id allocated for it.
type SentOrder struct {
	SentOrderClientID string
}

// OrderRequestFromUI is an order submission originating from the UI
// transport rather than the quoting engine.
type OrderRequestFromUI struct {
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	OrderType   string  `json:"orderType"`
	TimeInForce string  `json:"timeInForce"`
}

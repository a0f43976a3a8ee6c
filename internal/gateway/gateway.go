// Package gateway defines the contracts an exchange adapter must implement.
// Adapters emit events through typed Evt streams; the brokers consume them
// on the engine loop and never call back into an adapter from another
// goroutine.
package gateway

import (
	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/event"
)

// MarketDataGateway emits full order-book snapshots and connectivity
// transitions for the market-data channel.
type MarketDataGateway interface {
	MarketData() *event.Evt[domain.Market]
	ConnectChanged() *event.Evt[domain.ConnectivityStatus]
}

// OrderEntryGateway submits, cancels and replaces orders and emits status
// deltas for them. Send/cancel/replace receive the merged report so the
// adapter sees the full current view of the order, not just the delta.
type OrderEntryGateway interface {
	GenerateClientOrderID() string

	SendOrder(rpt domain.OrderStatusReport) error
	CancelOrder(rpt domain.OrderStatusReport) error
	ReplaceOrder(rpt domain.OrderStatusReport) error

	// CancelsByClientOrderID reports whether the venue accepts cancels
	// keyed by the client id. When false, a cancel needs the exchange id,
	// which opens the cancel-before-ack race the broker resolves.
	CancelsByClientOrderID() bool

	SupportsCancelAllOpenOrders() bool
	CancelAllOpenOrders() (int, error)

	OrderUpdate() *event.Evt[domain.OrderStatusUpdate]
	ConnectChanged() *event.Evt[domain.ConnectivityStatus]
}

// PositionGateway emits raw free/held balances per currency.
type PositionGateway interface {
	PositionUpdate() *event.Evt[domain.CurrencyPosition]
}

// ExchangeDetails exposes static facts about the venue.
type ExchangeDetails interface {
	Name() string
	MakeFee() float64
	TakeFee() float64
	MinTickIncrement() float64
	MinSize() float64
	HasSelfTradePrevention() bool
	SupportedCurrencyPairs() []domain.CurrencyPair
}

// CombinedGateway bundles the four channels of one exchange adapter.
type CombinedGateway struct {
	MarketData MarketDataGateway
	OrderEntry OrderEntryGateway
	Position   PositionGateway
	Details    ExchangeDetails
}

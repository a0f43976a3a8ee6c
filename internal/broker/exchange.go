package broker

import (
	"log/slog"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/gateway"
	"github.com/ctubio/tribeca/internal/transport"
)

// ExchangeBroker aggregates market-data and order-entry connectivity into
// a single ready signal and passes through the venue's static details.
// Combined status is Connected iff both axes are Connected; only actual
// combined transitions are emitted.
type ExchangeBroker struct {
	ConnectChanged event.Evt[domain.ConnectivityStatus]

	log           *slog.Logger
	pair          domain.CurrencyPair
	details       gateway.ExchangeDetails
	publisher     transport.Publisher[domain.ConnectivityStatus]
	mdConnected   domain.ConnectivityStatus
	oeConnected   domain.ConnectivityStatus
	connectStatus domain.ConnectivityStatus
}

// NewExchangeBroker subscribes to both connectivity axes.
func NewExchangeBroker(
	pair domain.CurrencyPair,
	mdGateway gateway.MarketDataGateway,
	details gateway.ExchangeDetails,
	oeGateway gateway.OrderEntryGateway,
	publisher transport.Publisher[domain.ConnectivityStatus],
) *ExchangeBroker {
	b := &ExchangeBroker{
		log:       slog.Default().With(slog.String("component", "ex:broker")),
		pair:      pair,
		details:   details,
		publisher: publisher,
	}

	publisher.RegisterSnapshot(func() []domain.ConnectivityStatus {
		return []domain.ConnectivityStatus{b.connectStatus}
	})

	mdGateway.ConnectChanged().On(func(s domain.ConnectivityStatus) {
		b.onConnect(domain.GatewayTypeMarketData, s)
	})
	oeGateway.ConnectChanged().On(func(s domain.ConnectivityStatus) {
		b.onConnect(domain.GatewayTypeOrderEntry, s)
	})

	return b
}

func (b *ExchangeBroker) onConnect(gwType domain.GatewayType, cs domain.ConnectivityStatus) {
	switch gwType {
	case domain.GatewayTypeMarketData:
		if b.mdConnected == cs {
			return
		}
		b.mdConnected = cs
	case domain.GatewayTypeOrderEntry:
		if b.oeConnected == cs {
			return
		}
		b.oeConnected = cs
	}

	newStatus := domain.Disconnected
	if b.mdConnected == domain.Connected && b.oeConnected == domain.Connected {
		newStatus = domain.Connected
	}
	if newStatus == b.connectStatus {
		return
	}

	b.connectStatus = newStatus
	b.log.Info("connectivity changed",
		slog.String("combined", newStatus.String()),
		slog.String("md", b.mdConnected.String()),
		slog.String("oe", b.oeConnected.String()))
	b.ConnectChanged.Trigger(newStatus)
	b.publisher.Publish(newStatus)
}

// ConnectStatus returns the combined connectivity.
func (b *ExchangeBroker) ConnectStatus() domain.ConnectivityStatus {
	return b.connectStatus
}

// Pair returns the traded instrument.
func (b *ExchangeBroker) Pair() domain.CurrencyPair {
	return b.pair
}

// Exchange returns the venue name.
func (b *ExchangeBroker) Exchange() string {
	return b.details.Name()
}

// MinTickIncrement returns the smallest price increment.
func (b *ExchangeBroker) MinTickIncrement() float64 {
	return b.details.MinTickIncrement()
}

// MinSize returns the smallest order quantity.
func (b *ExchangeBroker) MinSize() float64 {
	return b.details.MinSize()
}

// MakeFee returns the maker fee fraction.
func (b *ExchangeBroker) MakeFee() float64 {
	return b.details.MakeFee()
}

// TakeFee returns the taker fee fraction.
func (b *ExchangeBroker) TakeFee() float64 {
	return b.details.TakeFee()
}

// HasSelfTradePrevention reports whether the venue prevents self-matching.
func (b *ExchangeBroker) HasSelfTradePrevention() bool {
	return b.details.HasSelfTradePrevention()
}

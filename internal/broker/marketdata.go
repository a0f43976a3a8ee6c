package broker

import (
	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/gateway"
	"github.com/ctubio/tribeca/internal/transport"
)

// MarketDataBroker republishes the latest order-book snapshot from the
// market-data gateway. The book resets to empty when the gateway
// disconnects so nobody quotes against stale levels.
type MarketDataBroker struct {
	MarketData event.Evt[domain.Market]

	currentBook *domain.Market
	publisher   transport.Publisher[domain.Market]
}

// NewMarketDataBroker subscribes to the market-data gateway.
func NewMarketDataBroker(mdGateway gateway.MarketDataGateway, publisher transport.Publisher[domain.Market]) *MarketDataBroker {
	b := &MarketDataBroker{publisher: publisher}

	publisher.RegisterSnapshot(func() []domain.Market {
		if b.currentBook == nil {
			return nil
		}
		return []domain.Market{*b.currentBook}
	})

	mdGateway.MarketData().On(b.handleMarketData)
	mdGateway.ConnectChanged().On(func(s domain.ConnectivityStatus) {
		if s == domain.Disconnected {
			b.currentBook = nil
		}
	})

	return b
}

// CurrentBook returns the latest snapshot, or nil while disconnected.
func (b *MarketDataBroker) CurrentBook() *domain.Market {
	return b.currentBook
}

func (b *MarketDataBroker) handleMarketData(book domain.Market) {
	b.currentBook = &book
	b.MarketData.Trigger(book)
	b.publisher.Publish(book)
}

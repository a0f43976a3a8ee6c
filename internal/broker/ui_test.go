package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctubio/tribeca/internal/domain"
)

func TestOrderBroker_UISubmit(t *testing.T) {
	f := newFixture(topParams(), nil)

	f.submitUI.fn(domain.OrderRequestFromUI{
		Side:        "Bid",
		Quantity:    1,
		Price:       99.996,
		OrderType:   "Limit",
		TimeInForce: "GTC",
	})

	require.Len(t, f.oe.sent, 1)
	sent := f.oe.sent[0]
	assert.Equal(t, domain.SideBid, sent.Side)
	assert.Equal(t, 99.99, sent.Price) // rounded to the bid side of the tick
	assert.Equal(t, domain.OrderTypeLimit, sent.Type)
	assert.Equal(t, domain.TimeInForceGTC, sent.TimeInForce)
	assert.Equal(t, "TestEx", sent.Exchange)
	assert.Equal(t, testPair, sent.Pair)
}

func TestOrderBroker_UISubmitMarketIOC(t *testing.T) {
	f := newFixture(topParams(), nil)

	f.submitUI.fn(domain.OrderRequestFromUI{
		Side:        "Ask",
		Quantity:    2,
		Price:       100,
		OrderType:   "Market",
		TimeInForce: "IOC",
	})

	require.Len(t, f.oe.sent, 1)
	assert.Equal(t, domain.OrderTypeMarket, f.oe.sent[0].Type)
	assert.Equal(t, domain.TimeInForceIOC, f.oe.sent[0].TimeInForce)
}

func TestOrderBroker_UISubmitBadSideDropped(t *testing.T) {
	f := newFixture(topParams(), nil)

	f.submitUI.fn(domain.OrderRequestFromUI{Side: "Sideways", Quantity: 1, Price: 100})
	assert.Empty(t, f.oe.sent)
}

func TestOrderBroker_UICancel(t *testing.T) {
	f := newFixture(topParams(), nil)

	id := f.submit(domain.SideBid, 100, 1)
	f.ack(id, "E1")

	f.cancelUI.fn(domain.OrderCancel{OrigOrderID: id})
	require.Len(t, f.oe.cancelled, 1)
	assert.True(t, f.oe.cancelled[0].PendingCancel)
	assert.Equal(t, "TestEx", f.oe.cancelled[0].Exchange)
}

func TestOrderBroker_UICancelAll(t *testing.T) {
	f := newFixture(topParams(), nil)

	a := f.submit(domain.SideBid, 100, 1)
	f.ack(a, "E1")

	f.cancelAllUI.fn(struct{}{})
	assert.Len(t, f.oe.cancelled, 1)
}

func TestOrderBroker_UICleanCommands(t *testing.T) {
	closed := mkTrade("closed", domain.SideAsk, 101, 1, seedTime())
	closed.Kqty = 1
	open := mkTrade("open", domain.SideBid, 99, 1, seedTime())
	f := newFixture(topParams(), []domain.Trade{closed, open})

	f.cleanClosedUI.fn(struct{}{})
	assert.Len(t, f.broker.Trades(), 1)

	f.cleanAllUI.fn(struct{}{})
	assert.Empty(t, f.broker.Trades())
}

package quoting

import (
	"testing"
	"time"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
)

func fvBook(bid, ask float64) domain.Market {
	return domain.Market{
		Bids: []domain.MarketSide{{Price: bid, Size: 1}},
		Asks: []domain.MarketSide{{Price: ask, Size: 1}},
	}
}

func TestFairValueEngine_MidOfTopOfBook(t *testing.T) {
	var md event.Evt[domain.Market]
	tp := engine.NewManualTime(time.Unix(0, 0))
	e := NewFairValueEngine(&md, tp, 0.01)

	if e.LatestFairValue() != nil {
		t.Fatal("expected no fair value before the first book")
	}

	md.Trigger(fvBook(99, 101))
	fv := e.LatestFairValue()
	if fv == nil || fv.Price != 100 {
		t.Fatalf("fair value %+v", fv)
	}
}

func TestFairValueEngine_SuppressesSubTickMoves(t *testing.T) {
	var md event.Evt[domain.Market]
	tp := engine.NewManualTime(time.Unix(0, 0))
	e := NewFairValueEngine(&md, tp, 0.01)

	changes := 0
	e.FairValueChanged().On(func(domain.FairValue) { changes++ })

	md.Trigger(fvBook(99, 101))
	md.Trigger(fvBook(99.001, 101.001)) // mid moved 0.001 < tick
	if changes != 1 {
		t.Fatalf("expected the sub-tick move to be suppressed, changes %d", changes)
	}
	if e.LatestFairValue().Price != 100 {
		t.Errorf("suppressed move still replaced the price: %v", e.LatestFairValue().Price)
	}

	md.Trigger(fvBook(99.01, 101.01))
	if changes != 2 {
		t.Errorf("tick-sized move not emitted, changes %d", changes)
	}
}

func TestFairValueEngine_IgnoresOneSidedBook(t *testing.T) {
	var md event.Evt[domain.Market]
	tp := engine.NewManualTime(time.Unix(0, 0))
	e := NewFairValueEngine(&md, tp, 0.01)

	md.Trigger(domain.Market{Bids: []domain.MarketSide{{Price: 99, Size: 1}}})
	if e.LatestFairValue() != nil {
		t.Error("one-sided book produced a fair value")
	}
}

func TestQuoter_MirrorsOpenOrders(t *testing.T) {
	var updates event.Evt[domain.OrderStatusReport]
	q := NewQuoter(&updates)

	updates.Trigger(domain.OrderStatusReport{
		OrderID:        "o1",
		Side:           domain.SideBid,
		OrderStatus:    domain.OrderStatusWorking,
		Price:          100,
		LeavesQuantity: 1,
	})
	updates.Trigger(domain.OrderStatusReport{
		OrderID:        "o2",
		Side:           domain.SideAsk,
		OrderStatus:    domain.OrderStatusWorking,
		Price:          101,
		LeavesQuantity: 2,
	})

	bids := q.QuotesActive(domain.SideBid)
	if len(bids) != 1 || bids[0].Price != 100 || bids[0].Size != 1 {
		t.Fatalf("bids %+v", bids)
	}
	if len(q.QuotesActive(domain.SideAsk)) != 1 {
		t.Fatal("ask quote missing")
	}
}

func TestQuoter_DropsTerminalOrders(t *testing.T) {
	var updates event.Evt[domain.OrderStatusReport]
	q := NewQuoter(&updates)

	updates.Trigger(domain.OrderStatusReport{
		OrderID:        "o1",
		Side:           domain.SideBid,
		OrderStatus:    domain.OrderStatusWorking,
		Price:          100,
		LeavesQuantity: 1,
	})
	updates.Trigger(domain.OrderStatusReport{
		OrderID:     "o1",
		Side:        domain.SideBid,
		OrderStatus: domain.OrderStatusCancelled,
		Done:        true,
	})

	if len(q.QuotesActive(domain.SideBid)) != 0 {
		t.Error("terminal order still counted as a resting quote")
	}
}

func TestQuoter_PartialFillShrinksQuote(t *testing.T) {
	var updates event.Evt[domain.OrderStatusReport]
	q := NewQuoter(&updates)

	updates.Trigger(domain.OrderStatusReport{
		OrderID:        "o1",
		Side:           domain.SideBid,
		OrderStatus:    domain.OrderStatusWorking,
		Price:          100,
		LeavesQuantity: 10,
	})
	updates.Trigger(domain.OrderStatusReport{
		OrderID:        "o1",
		Side:           domain.SideBid,
		OrderStatus:    domain.OrderStatusWorking,
		Price:          100,
		LeavesQuantity: 6,
	})

	bids := q.QuotesActive(domain.SideBid)
	if len(bids) != 1 || bids[0].Size != 6 {
		t.Fatalf("bids %+v", bids)
	}
}

package quoting

import (
	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
)

// FairValueEngine derives the reference price from the top of the book:
// the mid of best bid and best ask. Changes smaller than one tick are
// suppressed to keep downstream recomputation quiet.
type FairValueEngine struct {
	fairValueChanged event.Evt[domain.FairValue]

	tp      engine.TimeProvider
	minTick float64
	latest  *domain.FairValue
}

// NewFairValueEngine subscribes to the given market-data stream.
func NewFairValueEngine(md *event.Evt[domain.Market], tp engine.TimeProvider, minTick float64) *FairValueEngine {
	e := &FairValueEngine{tp: tp, minTick: minTick}
	md.On(e.handleMarketData)
	return e
}

// LatestFairValue returns the current fair value, or nil before the first
// usable book.
func (e *FairValueEngine) LatestFairValue() *domain.FairValue {
	return e.latest
}

// FairValueChanged notifies on every accepted fair-value move.
func (e *FairValueEngine) FairValueChanged() *event.Evt[domain.FairValue] {
	return &e.fairValueChanged
}

func (e *FairValueEngine) handleMarketData(book domain.Market) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return
	}
	mid := (book.Bids[0].Price + book.Asks[0].Price) / 2

	if e.latest != nil && abs(mid-e.latest.Price) < e.minTick {
		return
	}

	fv := domain.FairValue{Price: mid, Time: e.tp.Now()}
	e.latest = &fv
	e.fairValueChanged.Trigger(fv)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

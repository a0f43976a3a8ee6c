package domain

import "time"

// Currency is an asset code, e.g. "BTC".
type Currency string

// CurrencyPair is the traded instrument: base priced in quote.
type CurrencyPair struct {
	Base  Currency `json:"base" yaml:"base"`
	Quote Currency `json:"quote" yaml:"quote"`
}

func (p CurrencyPair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// MarketSide is one price level of the order book.
type MarketSide struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Market is a full order-book snapshot. Levels are ordered best first.
type Market struct {
	Bids []MarketSide `json:"bids"`
	Asks []MarketSide `json:"asks"`
	Time time.Time    `json:"time"`
}

// FairValue is the reference price positions are valued against.
type FairValue struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// Quote is one side of the two-sided market the engine is showing.
type Quote struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

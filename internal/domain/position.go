package domain

import "time"

// CurrencyPosition is the free and held amount of one currency.
// Held is the portion reserved by open orders.
type CurrencyPosition struct {
	Amount     float64  `json:"amount"`
	HeldAmount float64  `json:"heldAmount"`
	Currency   Currency `json:"currency"`
}

// PositionReport is the combined base/quote exposure of the trading pair,
// valued in both units at the latest fair value.
type PositionReport struct {
	BaseAmount      float64      `json:"baseAmount"`
	QuoteAmount     float64      `json:"quoteAmount"`
	BaseHeldAmount  float64      `json:"baseHeldAmount"`
	QuoteHeldAmount float64      `json:"quoteHeldAmount"`
	Value           float64      `json:"value"`
	QuoteValue      float64      `json:"quoteValue"`
	Pair            CurrencyPair `json:"pair"`
	Exchange        string       `json:"exchange"`
	Time            time.Time    `json:"time"`
}

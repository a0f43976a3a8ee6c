package domain

import "time"

// PingPongType records what a fill did to the trade list: opened or
// extended a resting trade (Ping) or countered an opposite-side one (Pong).
type PingPongType string

const (
	Ping PingPongType = "Ping"
	Pong PingPongType = "Pong"
)

// Trade is a matched fill, possibly still accumulating counter-fills.
// The K-prefixed fields are the counter-fill accumulator: quantity already
// paired against opposite-side fills, its weighted average price, its
// notional, the time of the last pairing, and the residual price/quantity
// mismatch once the trade is fully countered. Kqty == -1 marks a tombstone
// about to be removed from the list.
type Trade struct {
	TradeID      string       `json:"tradeId"`
	Time         time.Time    `json:"time"`
	Exchange     string       `json:"exchange"`
	Pair         CurrencyPair `json:"pair"`
	Price        float64      `json:"price"`
	Quantity     float64      `json:"quantity"`
	Side         Side         `json:"side"`
	Value        float64      `json:"value"`
	Liquidity    Liquidity    `json:"liquidity"`
	FeeCharged   *float64     `json:"feeCharged,omitempty"`
	Kqty         float64      `json:"Kqty"`
	Kprice       float64      `json:"Kprice"`
	Kvalue       float64      `json:"Kvalue"`
	Ktime        time.Time    `json:"Ktime"`
	Kdiff        float64      `json:"Kdiff"`
	LoadedFromDB bool         `json:"loadedFromDB"`
}

// TradeChart is the per-fill telemetry point pushed to the UI.
type TradeChart struct {
	Price    float64      `json:"price"`
	Side     Side         `json:"side"`
	Quantity float64      `json:"quantity"`
	Value    float64      `json:"value"`
	PingPong PingPongType `json:"pong"`
	Time     time.Time    `json:"time"`
}

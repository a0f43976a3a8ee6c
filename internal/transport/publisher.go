// Package transport pushes broker snapshots and deltas to UI subscribers
// over websocket, and routes UI-originated commands back onto the engine
// loop. Topics carry an initial snapshot on subscribe followed by every
// incremental publish.
package transport

// Publisher publishes incremental values of one topic and serves a
// point-in-time snapshot to new subscribers.
type Publisher[T any] interface {
	Publish(v T)
	RegisterSnapshot(fn func() []T)
}

// Receiver delivers UI-originated values of one topic.
type Receiver[T any] interface {
	RegisterReceiver(fn func(T))
}

// Topic names shared with UI clients.
const (
	TopicMarketData      = "marketData"
	TopicOrderStatus     = "orderStatusReports"
	TopicTrades          = "trades"
	TopicTradeChart      = "tradeChart"
	TopicPosition        = "position"
	TopicConnectivity    = "connectivity"
	TopicSubmitNewOrder  = "submitNewOrder"
	TopicCancelOrder     = "cancelOrder"
	TopicCancelAllOrders = "cancelAllOrders"
	TopicCleanClosed     = "cleanClosedTrades"
	TopicCleanAll        = "cleanAllTrades"
)

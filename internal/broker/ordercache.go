// Package broker contains the order, position and connectivity brokers:
// the layer that merges asynchronous exchange acknowledgements into a
// single consistent view of orders, trades and exposure. All state in this
// package is owned by the engine loop; nothing here locks and nothing here
// may be touched from another goroutine.
package broker

import "github.com/ctubio/tribeca/internal/domain"

// OrderStateCache is the exclusive store of truth for live orders: client
// order id to current report, and exchange id back to client id. It holds
// no merge logic and is mutated only by OrderBroker. An order is evicted
// the moment it goes terminal, so a cached report is never Done.
type OrderStateCache struct {
	allOrders        map[string]domain.OrderStatusReport
	exchIDToClientID map[string]string
}

// NewOrderStateCache creates an empty cache.
func NewOrderStateCache() *OrderStateCache {
	return &OrderStateCache{
		allOrders:        make(map[string]domain.OrderStatusReport),
		exchIDToClientID: make(map[string]string),
	}
}

// Get looks up a live order by client order id.
func (c *OrderStateCache) Get(orderID string) (domain.OrderStatusReport, bool) {
	rpt, ok := c.allOrders[orderID]
	return rpt, ok
}

// ClientIDForExchangeID translates a venue-assigned id to the client id.
func (c *OrderStateCache) ClientIDForExchangeID(exchangeID string) (string, bool) {
	id, ok := c.exchIDToClientID[exchangeID]
	return id, ok
}

// Store inserts or replaces the report and, once an exchange id is known,
// the reverse mapping.
func (c *OrderStateCache) Store(rpt domain.OrderStatusReport) {
	if rpt.ExchangeID != "" {
		c.exchIDToClientID[rpt.ExchangeID] = rpt.OrderID
	}
	c.allOrders[rpt.OrderID] = rpt
}

// Evict removes both entries for the order.
func (c *OrderStateCache) Evict(rpt domain.OrderStatusReport) {
	if rpt.ExchangeID != "" {
		delete(c.exchIDToClientID, rpt.ExchangeID)
	}
	delete(c.allOrders, rpt.OrderID)
}

// Orders returns a copy of every live report.
func (c *OrderStateCache) Orders() []domain.OrderStatusReport {
	out := make([]domain.OrderStatusReport, 0, len(c.allOrders))
	for _, rpt := range c.allOrders {
		out = append(out, rpt)
	}
	return out
}

// Len reports how many live orders are cached.
func (c *OrderStateCache) Len() int {
	return len(c.allOrders)
}

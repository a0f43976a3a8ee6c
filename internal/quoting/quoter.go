package quoting

import (
	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/event"
)

// Quoter tracks the quotes currently resting on the exchange, one entry
// per live order, mirrored from the order-update stream. The position
// broker reads it to work out how much of each currency open orders hold.
type Quoter struct {
	active map[domain.Side]map[string]domain.Quote
}

// NewQuoter mirrors the given order-update stream.
func NewQuoter(orderUpdate *event.Evt[domain.OrderStatusReport]) *Quoter {
	q := &Quoter{
		active: map[domain.Side]map[string]domain.Quote{
			domain.SideBid: {},
			domain.SideAsk: {},
		},
	}
	orderUpdate.On(q.handleOrderUpdate)
	return q
}

func (q *Quoter) handleOrderUpdate(o domain.OrderStatusReport) {
	side, ok := q.active[o.Side]
	if !ok {
		return
	}
	if o.Done || o.OrderStatus.IsTerminal() || !o.IsOpen() {
		delete(side, o.OrderID)
		return
	}
	side[o.OrderID] = domain.Quote{Price: o.Price, Size: o.LeavesQuantity}
}

// QuotesActive returns the resting quotes on one side.
func (q *Quoter) QuotesActive(side domain.Side) []domain.Quote {
	entries := q.active[side]
	out := make([]domain.Quote, 0, len(entries))
	for _, quote := range entries {
		out = append(out, quote)
	}
	return out
}

package broker

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/gateway"
	"github.com/ctubio/tribeca/internal/quoting"
	"github.com/ctubio/tribeca/internal/transport"
)

// kqtyCleanEpsilon is how close the countered quantity must be to the full
// quantity before a trade counts as closed.
const kqtyCleanEpsilon = 1e-4

// autoCancelDelay is the one-shot delay before the optional automatic
// cancel-all kicks in.
const autoCancelDelay = 5 * time.Minute

// tradeSnapshotLimit caps the trade snapshot sent to new subscribers.
const tradeSnapshotLimit = 1000

// TradePersister stores trades across restarts.
type TradePersister interface {
	Persist(t domain.Trade) error
	Repersist(t domain.Trade) error
}

// coalesce returns the updated value when the delta defines it, else the
// prior one.
func coalesce[T any](n *T, o T) T {
	if n != nil {
		return *n
	}
	return o
}

func deref(n *float64) float64 {
	if n != nil {
		return *n
	}
	return 0
}

// roundSide snaps a price to the venue tick so a bid never rounds up
// through the book and an ask never rounds down.
func roundSide(price, minTick float64, side domain.Side) float64 {
	switch side {
	case domain.SideBid:
		return math.Floor(price/minTick) * minTick
	case domain.SideAsk:
		return math.Ceil(price/minTick) * minTick
	}
	return math.Round(price/minTick) * minTick
}

// OrderBroker owns the order lifecycle: submission, cancel/replace, the
// cancel-before-ack race, the update merge, fill processing and the trade
// list with its ping-pong pairing.
type OrderBroker struct {
	// OrderUpdate emits every merged report, including ones where nothing
	// interesting changed; consumers de-duplicate on Version.
	OrderUpdate event.Evt[domain.OrderStatusReport]
	// Trade emits the raw fill before any pairing.
	Trade event.Evt[domain.Trade]

	log    *slog.Logger
	tp     engine.TimeProvider
	params *quoting.ParametersRepository
	base   *ExchangeBroker
	oe     gateway.OrderEntryGateway

	tradePersister      TradePersister
	orderPublisher      transport.Publisher[domain.OrderStatusReport]
	tradePublisher      transport.Publisher[domain.Trade]
	tradeChartPublisher transport.Publisher[domain.TradeChart]

	cache                       *OrderStateCache
	cancelsWaitingForExchangeID map[string]domain.OrderCancel
	trades                      []domain.Trade
}

// NewOrderBroker wires the broker to the gateway, persistence and
// transport, seeds the trade list and registers the UI receivers.
func NewOrderBroker(
	tp engine.TimeProvider,
	params *quoting.ParametersRepository,
	base *ExchangeBroker,
	oe gateway.OrderEntryGateway,
	tradePersister TradePersister,
	orderPublisher transport.Publisher[domain.OrderStatusReport],
	tradePublisher transport.Publisher[domain.Trade],
	tradeChartPublisher transport.Publisher[domain.TradeChart],
	submitReceiver transport.Receiver[domain.OrderRequestFromUI],
	cancelReceiver transport.Receiver[domain.OrderCancel],
	cancelAllReceiver transport.Receiver[struct{}],
	cleanClosedReceiver transport.Receiver[struct{}],
	cleanAllReceiver transport.Receiver[struct{}],
	cache *OrderStateCache,
	initTrades []domain.Trade,
) *OrderBroker {
	b := &OrderBroker{
		log:                         slog.Default().With(slog.String("component", "oe:broker")),
		tp:                          tp,
		params:                      params,
		base:                        base,
		oe:                          oe,
		tradePersister:              tradePersister,
		orderPublisher:              orderPublisher,
		tradePublisher:              tradePublisher,
		tradeChartPublisher:         tradeChartPublisher,
		cache:                       cache,
		cancelsWaitingForExchangeID: make(map[string]domain.OrderCancel),
		trades:                      append([]domain.Trade(nil), initTrades...),
	}

	if params.Latest().Mode.UsesPingPong() {
		if _, err := oe.CancelAllOpenOrders(); err != nil {
			b.log.Error("startup cancel-all failed", slog.Any("error", err))
		}
	}
	tp.SetTimeout(autoCancelDelay, func() {
		if !params.Latest().CancelOrdersAuto {
			return
		}
		if _, err := oe.CancelAllOpenOrders(); err != nil {
			b.log.Error("auto cancel-all failed", slog.Any("error", err))
		}
	})

	orderPublisher.RegisterSnapshot(func() []domain.OrderStatusReport {
		var open []domain.OrderStatusReport
		for _, rpt := range b.cache.Orders() {
			if rpt.IsOpen() {
				open = append(open, rpt)
			}
		}
		return open
	})
	tradePublisher.RegisterSnapshot(func() []domain.Trade {
		trades := b.trades
		if len(trades) > tradeSnapshotLimit {
			trades = trades[len(trades)-tradeSnapshotLimit:]
		}
		out := make([]domain.Trade, len(trades))
		for i, t := range trades {
			t.LoadedFromDB = true
			out[i] = t
		}
		return out
	})

	submitReceiver.RegisterReceiver(func(req domain.OrderRequestFromUI) {
		order, err := orderFromUI(req, base.Exchange(), tp.Now())
		if err != nil {
			b.log.Error("rejected order request from UI", slog.Any("error", err), slog.Any("request", req))
			return
		}
		if _, err := b.SendOrder(order); err != nil {
			b.log.Error("unhandled error while submitting order", slog.Any("error", err), slog.Any("request", req))
		}
	})
	cancelReceiver.RegisterReceiver(func(cxl domain.OrderCancel) {
		cxl.Exchange = base.Exchange()
		cxl.Time = tp.Now()
		if err := b.CancelOrder(cxl); err != nil {
			b.log.Error("unhandled error while cancelling order", slog.Any("error", err), slog.String("orderID", cxl.OrigOrderID))
		}
	})
	cancelAllReceiver.RegisterReceiver(func(struct{}) { b.CancelOpenOrders() })
	cleanClosedReceiver.RegisterReceiver(func(struct{}) { b.CleanClosedOrders() })
	cleanAllReceiver.RegisterReceiver(func(struct{}) { b.CleanOrders() })

	oe.OrderUpdate().On(func(osr domain.OrderStatusUpdate) {
		b.UpdateOrderState(osr)
	})

	return b
}

func orderFromUI(req domain.OrderRequestFromUI, exchange string, now time.Time) (domain.SubmitNewOrder, error) {
	var side domain.Side
	switch req.Side {
	case "Bid":
		side = domain.SideBid
	case "Ask":
		side = domain.SideAsk
	default:
		return domain.SubmitNewOrder{}, fmt.Errorf("unknown side %q", req.Side)
	}
	orderType := domain.OrderTypeLimit
	if req.OrderType == "Market" {
		orderType = domain.OrderTypeMarket
	}
	tif := domain.TimeInForceGTC
	switch req.TimeInForce {
	case "IOC":
		tif = domain.TimeInForceIOC
	case "FOK":
		tif = domain.TimeInForceFOK
	}
	return domain.SubmitNewOrder{
		Side:        side,
		Quantity:    req.Quantity,
		Type:        orderType,
		Price:       req.Price,
		TimeInForce: tif,
		Exchange:    exchange,
		Time:        now,
	}, nil
}

func (b *OrderBroker) roundPrice(price float64, side domain.Side) float64 {
	return roundSide(price, b.base.MinTickIncrement(), side)
}

// SendOrder allocates a client order id, records the order as New and
// forwards it to the gateway.
func (b *OrderBroker) SendOrder(order domain.SubmitNewOrder) (domain.SentOrder, error) {
	orderID := b.oe.GenerateClientOrderID()

	pair := b.base.Pair()
	status := domain.OrderStatusNew
	price := b.roundPrice(order.Price, order.Side)
	rpt, _ := b.UpdateOrderState(domain.OrderStatusUpdate{
		OrderID:        orderID,
		Pair:           &pair,
		Side:           &order.Side,
		Quantity:       &order.Quantity,
		LeavesQuantity: &order.Quantity,
		Type:           &order.Type,
		Price:          &price,
		TimeInForce:    &order.TimeInForce,
		OrderStatus:    &status,
		Exchange:       &order.Exchange,
	})

	if err := b.oe.SendOrder(rpt); err != nil {
		return domain.SentOrder{}, fmt.Errorf("send order %s: %w", orderID, err)
	}
	return domain.SentOrder{SentOrderClientID: orderID}, nil
}

// ReplaceOrder re-rounds the new price, marks the order pendingReplace and
// forwards it. The original order must still be live.
func (b *OrderBroker) ReplaceOrder(replace domain.CancelReplaceOrder) (domain.SentOrder, error) {
	prior, ok := b.cache.Get(replace.OrigOrderID)
	if !ok {
		return domain.SentOrder{}, fmt.Errorf("cannot replace %s: %w", replace.OrigOrderID, domain.ErrUnknownOrder)
	}

	status := domain.OrderStatusWorking
	price := b.roundPrice(replace.Price, prior.Side)
	rpt, _ := b.UpdateOrderState(domain.OrderStatusUpdate{
		OrderID:        replace.OrigOrderID,
		OrderStatus:    &status,
		PendingReplace: true,
		Price:          &price,
		Quantity:       &replace.Quantity,
	})

	if err := b.oe.ReplaceOrder(rpt); err != nil {
		return domain.SentOrder{}, fmt.Errorf("replace order %s: %w", replace.OrigOrderID, err)
	}
	return domain.SentOrder{SentOrderClientID: replace.OrigOrderID}, nil
}

// CancelOrder cancels a live order. An unknown order is presumed already
// resolved: a terminal Cancelled report is synthesized and forwarded as a
// gateway-level cancel signal instead of failing. When the venue needs its
// own id for cancels and none has been acknowledged yet, the cancel is
// parked until the ack supplies it.
func (b *OrderBroker) CancelOrder(cancel domain.OrderCancel) error {
	rpt, ok := b.cache.Get(cancel.OrigOrderID)
	if !ok {
		return b.oe.CancelOrder(domain.OrderStatusReport{
			OrderID:        cancel.OrigOrderID,
			OrderStatus:    domain.OrderStatusCancelled,
			LeavesQuantity: 0,
			Done:           true,
			Time:           b.tp.Now(),
		})
	}

	if !b.oe.CancelsByClientOrderID() && rpt.ExchangeID == "" {
		// cancel-before-ack race: park it, fire on the ack that brings
		// the exchange id
		b.cancelsWaitingForExchangeID[rpt.OrderID] = cancel
		return nil
	}

	status := domain.OrderStatusWorking
	merged, _ := b.UpdateOrderState(domain.OrderStatusUpdate{
		OrderID:       cancel.OrigOrderID,
		OrderStatus:   &status,
		PendingCancel: true,
	})
	return b.oe.CancelOrder(merged)
}

// UpdateOrderState merges an incoming delta into the prior report and is
// the only path that mutates the cache. It returns the merged report and
// whether the update was accepted; updates for unrecognized orders are
// discarded as stale.
func (b *OrderBroker) UpdateOrderState(osr domain.OrderStatusUpdate) (domain.OrderStatusReport, bool) {
	var prior domain.OrderStatusReport
	isNew := osr.OrderStatus != nil && *osr.OrderStatus == domain.OrderStatusNew
	if !isNew {
		var ok bool
		prior, ok = b.cache.Get(osr.OrderID)
		if !ok && osr.ExchangeID != nil {
			// some venues ack with only their own id before we learned
			// the mapping
			if clientID, found := b.cache.ClientIDForExchangeID(*osr.ExchangeID); found {
				osr.OrderID = clientID
				prior, ok = b.cache.Get(clientID)
			}
		}
		if !ok {
			return domain.OrderStatusReport{}, false
		}
	}

	quantity := coalesce(osr.Quantity, prior.Quantity)

	var cumQuantity float64
	if osr.CumQuantity != nil {
		cumQuantity = *osr.CumQuantity
	} else {
		cumQuantity = prior.CumQuantity + deref(osr.LastQuantity)
	}

	version := 0
	if !isNew {
		version = prior.Version + 1
	}

	averagePrice := 0.0
	if cumQuantity > 0 {
		averagePrice = coalesce(osr.AveragePrice, prior.AveragePrice)
	}

	exchangeID := prior.ExchangeID
	if osr.ExchangeID != nil {
		exchangeID = *osr.ExchangeID
	}

	reportTime := b.tp.Now()
	if osr.Time != nil {
		reportTime = *osr.Time
	}

	o := domain.OrderStatusReport{
		Pair:            coalesce(osr.Pair, prior.Pair),
		Side:            coalesce(osr.Side, prior.Side),
		Quantity:        quantity,
		Type:            coalesce(osr.Type, prior.Type),
		Price:           coalesce(osr.Price, prior.Price),
		TimeInForce:     coalesce(osr.TimeInForce, prior.TimeInForce),
		OrderID:         osr.OrderID,
		ExchangeID:      exchangeID,
		OrderStatus:     coalesce(osr.OrderStatus, prior.OrderStatus),
		RejectMessage:   osr.RejectMessage,
		Time:            reportTime,
		LastQuantity:    deref(osr.LastQuantity),
		LastPrice:       deref(osr.LastPrice),
		LeavesQuantity:  coalesce(osr.LeavesQuantity, prior.LeavesQuantity),
		CumQuantity:     cumQuantity,
		AveragePrice:    averagePrice,
		Liquidity:       coalesce(osr.Liquidity, prior.Liquidity),
		Exchange:        coalesce(osr.Exchange, prior.Exchange),
		Version:         version,
		PartiallyFilled: cumQuantity > 0 && cumQuantity != quantity,
		PendingCancel:   osr.PendingCancel,
		PendingReplace:  osr.PendingReplace,
		CancelRejected:  osr.CancelRejected,
		Done:            osr.Done,
	}

	b.updateOrderStatusInMemory(o)

	// fire any cancel parked while waiting for this exchange id
	if !b.oe.CancelsByClientOrderID() && o.ExchangeID != "" {
		if cancel, waiting := b.cancelsWaitingForExchangeID[o.OrderID]; waiting {
			delete(b.cancelsWaitingForExchangeID, o.OrderID)
			if err := b.CancelOrder(cancel); err != nil {
				b.log.Error("late cancel failed", slog.Any("error", err), slog.String("orderID", o.OrderID))
			}
		}
	}

	b.OrderUpdate.Trigger(o)
	b.orderPublisher.Publish(o)

	if deref(osr.LastQuantity) > 0 {
		b.processFill(o)
	}

	return o, true
}

func (b *OrderBroker) updateOrderStatusInMemory(o domain.OrderStatusReport) {
	b.cache.Store(o)
	if o.Done {
		b.cache.Evict(o)
		delete(b.cancelsWaitingForExchangeID, o.OrderID)
	}
}

func (b *OrderBroker) processFill(o domain.OrderStatusReport) {
	value := math.Abs(o.LastPrice * o.LastQuantity)

	var feeCharged *float64
	if o.Liquidity != domain.LiquidityUnknown {
		fee := b.base.TakeFee()
		if o.Liquidity == domain.LiquidityMake {
			fee = b.base.MakeFee()
		}
		sign := -1.0
		if o.Side == domain.SideBid {
			sign = 1.0
		}
		value *= 1 + sign*fee
		feeCharged = &fee
	}

	trade := domain.Trade{
		TradeID:    fmt.Sprintf("%s.%d", o.OrderID, o.Version),
		Time:       o.Time,
		Exchange:   o.Exchange,
		Pair:       o.Pair,
		Price:      o.LastPrice,
		Quantity:   o.LastQuantity,
		Side:       o.Side,
		Value:      value,
		Liquidity:  o.Liquidity,
		FeeCharged: feeCharged,
	}
	b.Trade.Trigger(trade)

	params := b.params.Latest()
	pingPong := domain.Ping
	if params.Mode.UsesPingPong() {
		pingPong = b.reTrade(b.matchCandidates(trade, params), trade)
	} else {
		b.publishTrade(trade, false)
		b.trades = append(b.trades, trade)
	}

	b.tradeChartPublisher.Publish(domain.TradeChart{
		Price:    o.LastPrice,
		Side:     o.Side,
		Quantity: o.LastQuantity,
		Value:    math.Round(value*100) / 100,
		PingPong: pingPong,
		Time:     o.Time,
	})
}

// matchCandidates returns the ids of open opposite-side trades whose price
// clears the pong width from the fill, ordered by the configured tie-break.
func (b *OrderBroker) matchCandidates(trade domain.Trade, params quoting.Parameters) []string {
	var candidates []domain.Trade
	for _, t := range b.trades {
		if t.Side != trade.Side.Opposite() || t.Quantity-t.Kqty <= 0 {
			continue
		}
		if trade.Side == domain.SideBid {
			if t.Price > trade.Price+params.WidthPong {
				candidates = append(candidates, t)
			}
		} else {
			if t.Price < trade.Price-params.WidthPong {
				candidates = append(candidates, t)
			}
		}
	}

	longPing := params.PongAt.IsLongPing()
	sort.SliceStable(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		if longPing {
			// most aggressively priced counter first
			if trade.Side == domain.SideBid {
				return a.Price > c.Price
			}
			return a.Price < c.Price
		}
		// nearest price first
		if trade.Side == domain.SideBid {
			return a.Price < c.Price
		}
		return a.Price > c.Price
	})

	ids := make([]string, len(candidates))
	for i, t := range candidates {
		ids[i] = t.TradeID
	}
	return ids
}

// reTrade greedily counter-fills the incoming fill against the candidate
// trades; leftover quantity merges into an open trade at the identical
// price and side, or opens a new one.
func (b *OrderBroker) reTrade(candidateIDs []string, trade domain.Trade) domain.PingPongType {
	pingPong := domain.Ping

	for _, id := range candidateIDs {
		if trade.Quantity <= 0 {
			break
		}
		i := b.tradeIndex(id)
		if i < 0 {
			continue
		}
		t := &b.trades[i]

		kqty := math.Min(trade.Quantity, t.Quantity-t.Kqty)
		t.Ktime = trade.Time
		t.Kprice = (kqty*trade.Price + t.Kqty*t.Kprice) / (t.Kqty + kqty)
		t.Kqty += kqty
		t.Kvalue = math.Abs(t.Kprice * t.Kqty)
		trade.Quantity -= kqty
		trade.Value = math.Abs(trade.Price * trade.Quantity)
		if t.Quantity <= t.Kqty {
			t.Kdiff = math.Abs(t.Quantity*t.Price - t.Kqty*t.Kprice)
		}
		t.LoadedFromDB = false
		pingPong = domain.Pong
		b.publishTrade(*t, true)
	}

	if trade.Quantity > 0 {
		merged := false
		for i := range b.trades {
			t := &b.trades[i]
			if t.Price == trade.Price && t.Side == trade.Side && t.Quantity > t.Kqty {
				t.Time = trade.Time
				t.Quantity += trade.Quantity
				t.Value += trade.Value
				t.LoadedFromDB = false
				b.publishTrade(*t, true)
				merged = true
				break
			}
		}
		if !merged {
			b.publishTrade(trade, false)
			b.trades = append(b.trades, trade)
		}
	}

	return pingPong
}

func (b *OrderBroker) tradeIndex(tradeID string) int {
	for i := range b.trades {
		if b.trades[i].TradeID == tradeID {
			return i
		}
	}
	return -1
}

func (b *OrderBroker) publishTrade(t domain.Trade, repersist bool) {
	b.tradePublisher.Publish(t)
	var err error
	if repersist {
		err = b.tradePersister.Repersist(t)
	} else {
		err = b.tradePersister.Persist(t)
	}
	if err != nil {
		b.log.Error("trade persistence failed", slog.Any("error", err), slog.String("tradeID", t.TradeID))
	}
}

// CancelOpenOrders cancels every live, non-terminal, non-pending-cancel
// order. When the venue has no native bulk cancel, completion is driven by
// the arrival of a terminal update for each cancelled order; the returned
// channel resolves with the count once the last one lands. The engine loop
// is never blocked.
func (b *OrderBroker) CancelOpenOrders() <-chan int {
	result := make(chan int, 1)

	if b.oe.SupportsCancelAllOpenOrders() {
		n, err := b.oe.CancelAllOpenOrders()
		if err != nil {
			b.log.Error("bulk cancel-all failed", slog.Any("error", err))
		}
		result <- n
		return result
	}

	// register every target before issuing the first cancel, so a gateway
	// that acknowledges synchronously cannot resolve the channel early
	var targets []domain.OrderStatusReport
	outstanding := make(map[string]bool)
	for _, rpt := range b.cache.Orders() {
		if rpt.PendingCancel || rpt.OrderStatus.IsTerminal() {
			continue
		}
		targets = append(targets, rpt)
		outstanding[rpt.OrderID] = true
	}
	issued := len(targets)

	var handle event.Handle
	done := func() {
		result <- issued
		b.OrderUpdate.Off(handle)
	}
	handle = b.OrderUpdate.On(func(o domain.OrderStatusReport) {
		if !outstanding[o.OrderID] || !o.OrderStatus.IsTerminal() {
			return
		}
		delete(outstanding, o.OrderID)
		if len(outstanding) == 0 {
			done()
		}
	})

	for _, rpt := range targets {
		if err := b.CancelOrder(domain.OrderCancel{
			OrigOrderID: rpt.OrderID,
			Exchange:    rpt.Exchange,
			Time:        b.tp.Now(),
		}); err != nil {
			b.log.Error("cancel failed", slog.Any("error", err), slog.String("orderID", rpt.OrderID))
		}
	}

	if issued == 0 {
		done()
	}
	return result
}

// CleanClosedOrders tombstones and removes every trade whose countered
// quantity has reached its full quantity, returning the count removed.
func (b *OrderBroker) CleanClosedOrders() int {
	return b.cleanTrades(func(t domain.Trade) bool {
		return t.Kqty+kqtyCleanEpsilon >= t.Quantity
	})
}

// CleanOrders removes every trade regardless of countered quantity.
func (b *OrderBroker) CleanOrders() int {
	return b.cleanTrades(func(domain.Trade) bool { return true })
}

func (b *OrderBroker) cleanTrades(closed func(domain.Trade) bool) int {
	cleaned := 0
	kept := b.trades[:0]
	for _, t := range b.trades {
		if !closed(t) {
			kept = append(kept, t)
			continue
		}
		t.Kqty = -1
		b.publishTrade(t, true)
		cleaned++
	}
	b.trades = kept
	return cleaned
}

// Trades returns a copy of the current trade list.
func (b *OrderBroker) Trades() []domain.Trade {
	return append([]domain.Trade(nil), b.trades...)
}

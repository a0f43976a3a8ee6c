package broker

import (
	"fmt"
	"time"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/quoting"
)

var testPair = domain.CurrencyPair{Base: "BTC", Quote: "USD"}

// nopPublisher drops everything; used where a test does not care about the
// transport side.
type nopPublisher[T any] struct{}

func (nopPublisher[T]) Publish(T)                   {}
func (nopPublisher[T]) RegisterSnapshot(func() []T) {}

// capturePublisher records publishes and keeps the registered snapshot
// function callable.
type capturePublisher[T any] struct {
	published []T
	snapshot  func() []T
}

func (p *capturePublisher[T]) Publish(v T)                    { p.published = append(p.published, v) }
func (p *capturePublisher[T]) RegisterSnapshot(fn func() []T) { p.snapshot = fn }

// funcReceiver hands the registered handler back to the test so it can
// play the UI.
type funcReceiver[T any] struct {
	fn func(T)
}

func (r *funcReceiver[T]) RegisterReceiver(fn func(T)) { r.fn = fn }

type memPersister struct {
	persisted   []domain.Trade
	repersisted []domain.Trade
}

func (p *memPersister) Persist(t domain.Trade) error {
	p.persisted = append(p.persisted, t)
	return nil
}

func (p *memPersister) Repersist(t domain.Trade) error {
	p.repersisted = append(p.repersisted, t)
	return nil
}

// stubMarketData is a scriptable market-data gateway.
type stubMarketData struct {
	marketData event.Evt[domain.Market]
	connect    event.Evt[domain.ConnectivityStatus]
}

func (g *stubMarketData) MarketData() *event.Evt[domain.Market] { return &g.marketData }
func (g *stubMarketData) ConnectChanged() *event.Evt[domain.ConnectivityStatus] {
	return &g.connect
}

// stubOrderEntry records outbound calls and lets the test script the
// update stream.
type stubOrderEntry struct {
	updates event.Evt[domain.OrderStatusUpdate]
	connect event.Evt[domain.ConnectivityStatus]

	cancelsByClientID bool
	supportsCancelAll bool

	nextID         int
	sent           []domain.OrderStatusReport
	cancelled      []domain.OrderStatusReport
	replaced       []domain.OrderStatusReport
	cancelAllCalls int
}

func (g *stubOrderEntry) GenerateClientOrderID() string {
	g.nextID++
	return fmt.Sprintf("c%d", g.nextID)
}

func (g *stubOrderEntry) SendOrder(rpt domain.OrderStatusReport) error {
	g.sent = append(g.sent, rpt)
	return nil
}

func (g *stubOrderEntry) CancelOrder(rpt domain.OrderStatusReport) error {
	g.cancelled = append(g.cancelled, rpt)
	return nil
}

func (g *stubOrderEntry) ReplaceOrder(rpt domain.OrderStatusReport) error {
	g.replaced = append(g.replaced, rpt)
	return nil
}

func (g *stubOrderEntry) CancelsByClientOrderID() bool      { return g.cancelsByClientID }
func (g *stubOrderEntry) SupportsCancelAllOpenOrders() bool { return g.supportsCancelAll }

func (g *stubOrderEntry) CancelAllOpenOrders() (int, error) {
	g.cancelAllCalls++
	return 0, nil
}

func (g *stubOrderEntry) OrderUpdate() *event.Evt[domain.OrderStatusUpdate] { return &g.updates }
func (g *stubOrderEntry) ConnectChanged() *event.Evt[domain.ConnectivityStatus] {
	return &g.connect
}

type stubPositionFeed struct {
	updates event.Evt[domain.CurrencyPosition]
}

func (g *stubPositionFeed) PositionUpdate() *event.Evt[domain.CurrencyPosition] {
	return &g.updates
}

type stubDetails struct {
	name    string
	makeFee float64
	takeFee float64
	minTick float64
	minSize float64
	stp     bool
}

func (d stubDetails) Name() string                 { return d.name }
func (d stubDetails) MakeFee() float64             { return d.makeFee }
func (d stubDetails) TakeFee() float64             { return d.takeFee }
func (d stubDetails) MinTickIncrement() float64    { return d.minTick }
func (d stubDetails) MinSize() float64             { return d.minSize }
func (d stubDetails) HasSelfTradePrevention() bool { return d.stp }
func (d stubDetails) SupportedCurrencyPairs() []domain.CurrencyPair {
	return []domain.CurrencyPair{testPair}
}

type stubFairValue struct {
	changed event.Evt[domain.FairValue]
	latest  *domain.FairValue
}

func (s *stubFairValue) LatestFairValue() *domain.FairValue             { return s.latest }
func (s *stubFairValue) FairValueChanged() *event.Evt[domain.FairValue] { return &s.changed }

func (s *stubFairValue) set(price float64, now time.Time) {
	s.latest = &domain.FairValue{Price: price, Time: now}
	s.changed.Trigger(*s.latest)
}

type stubQuotes struct {
	quotes map[domain.Side][]domain.Quote
}

func (s *stubQuotes) QuotesActive(side domain.Side) []domain.Quote {
	return s.quotes[side]
}

// fixture wires an OrderBroker over stubs with capture publishers on every
// outbound topic.
type fixture struct {
	tp        *engine.ManualTime
	params    *quoting.ParametersRepository
	md        *stubMarketData
	oe        *stubOrderEntry
	base      *ExchangeBroker
	persister *memPersister
	orders    *capturePublisher[domain.OrderStatusReport]
	trades    *capturePublisher[domain.Trade]
	chart     *capturePublisher[domain.TradeChart]
	cache     *OrderStateCache
	broker    *OrderBroker

	submitUI      *funcReceiver[domain.OrderRequestFromUI]
	cancelUI      *funcReceiver[domain.OrderCancel]
	cancelAllUI   *funcReceiver[struct{}]
	cleanClosedUI *funcReceiver[struct{}]
	cleanAllUI    *funcReceiver[struct{}]
}

func newFixture(p quoting.Parameters, initTrades []domain.Trade) *fixture {
	f := &fixture{
		tp:        engine.NewManualTime(time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)),
		params:    quoting.NewParametersRepository(p),
		md:        &stubMarketData{},
		oe:        &stubOrderEntry{},
		persister: &memPersister{},
		orders:    &capturePublisher[domain.OrderStatusReport]{},
		trades:    &capturePublisher[domain.Trade]{},
		chart:     &capturePublisher[domain.TradeChart]{},
		cache:     NewOrderStateCache(),

		submitUI:      &funcReceiver[domain.OrderRequestFromUI]{},
		cancelUI:      &funcReceiver[domain.OrderCancel]{},
		cancelAllUI:   &funcReceiver[struct{}]{},
		cleanClosedUI: &funcReceiver[struct{}]{},
		cleanAllUI:    &funcReceiver[struct{}]{},
	}
	f.base = NewExchangeBroker(testPair, f.md, stubDetails{
		name:    "TestEx",
		makeFee: 0.001,
		takeFee: 0.002,
		minTick: 0.01,
		minSize: 0.01,
	}, f.oe, nopPublisher[domain.ConnectivityStatus]{})
	f.broker = NewOrderBroker(f.tp, f.params, f.base, f.oe, f.persister,
		f.orders, f.trades, f.chart,
		f.submitUI, f.cancelUI, f.cancelAllUI, f.cleanClosedUI, f.cleanAllUI,
		f.cache, initTrades)
	return f
}

func topParams() quoting.Parameters {
	return quoting.Parameters{Mode: quoting.ModeTop}
}

func boomerangParams(widthPong float64, pongAt quoting.PongAt) quoting.Parameters {
	return quoting.Parameters{Mode: quoting.ModeBoomerang, PongAt: pongAt, WidthPong: widthPong}
}

// submit places a limit order and returns its client id.
func (f *fixture) submit(side domain.Side, price, qty float64) string {
	sent, err := f.broker.SendOrder(domain.SubmitNewOrder{
		Side:        side,
		Quantity:    qty,
		Type:        domain.OrderTypeLimit,
		Price:       price,
		TimeInForce: domain.TimeInForceGTC,
		Exchange:    "TestEx",
		Time:        f.tp.Now(),
	})
	if err != nil {
		panic(err)
	}
	return sent.SentOrderClientID
}

// ack acknowledges the order with a venue id.
func (f *fixture) ack(orderID, exchangeID string) {
	status := domain.OrderStatusWorking
	f.oe.updates.Trigger(domain.OrderStatusUpdate{
		OrderID:     orderID,
		ExchangeID:  &exchangeID,
		OrderStatus: &status,
	})
}

// fill delivers a fill delta for the order.
func (f *fixture) fill(orderID string, qty, price, leaves float64, liquidity domain.Liquidity, done bool) {
	status := domain.OrderStatusWorking
	if done {
		status = domain.OrderStatusComplete
	}
	f.oe.updates.Trigger(domain.OrderStatusUpdate{
		OrderID:        orderID,
		OrderStatus:    &status,
		LastQuantity:   &qty,
		LastPrice:      &price,
		LeavesQuantity: &leaves,
		Liquidity:      &liquidity,
		Done:           done,
	})
}

func mkTrade(id string, side domain.Side, price, qty float64, t time.Time) domain.Trade {
	return domain.Trade{
		TradeID:  id,
		Time:     t,
		Exchange: "TestEx",
		Pair:     testPair,
		Price:    price,
		Quantity: qty,
		Side:     side,
		Value:    price * qty,
	}
}

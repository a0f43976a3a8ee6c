// Package sim is a self-contained paper exchange implementing all four
// gateway contracts. It acknowledges orders with venue-assigned ids on the
// next loop turn, executes fills against configured balances, and polls
// positions on the same cadence a real adapter would. It backs the default
// bootstrap and the integration tests.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/gateway"
)

const bookDepth = 5

// Config describes the simulated venue.
type Config struct {
	ExchangeName         string
	Pair                 domain.CurrencyPair
	MinTick              float64
	MinSize              float64
	MakeFee              float64
	TakeFee              float64
	SelfTradePrevention  bool
	InitialPrice         float64
	Balances             map[string]string // currency -> amount, decimal strings
	PositionPollInterval time.Duration
	BookInterval         time.Duration // 0 disables the synthetic book walk
}

type simOrder struct {
	clientID   string
	exchangeID string
	side       domain.Side
	price      float64
	leaves     float64
}

// Exchange is the simulator core. All methods must be called on the
// engine loop; timers fire there through the TimeProvider.
type Exchange struct {
	log *slog.Logger
	cfg Config
	tp  engine.TimeProvider

	marketData     event.Evt[domain.Market]
	mdConnect      event.Evt[domain.ConnectivityStatus]
	oeConnect      event.Evt[domain.ConnectivityStatus]
	orderUpdate    event.Evt[domain.OrderStatusUpdate]
	positionUpdate event.Evt[domain.CurrencyPosition]

	connected  bool
	balances   map[domain.Currency]float64
	held       map[domain.Currency]float64
	live       map[string]*simOrder // keyed by exchange id
	byClientID map[string]string
	nextExchID int
	mid        float64
	stops      []func()
}

// New builds the simulator and the gateway bundle over it.
func New(cfg Config, tp engine.TimeProvider) (gateway.CombinedGateway, *Exchange, error) {
	balances := make(map[domain.Currency]float64, len(cfg.Balances))
	for currency, amount := range cfg.Balances {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return gateway.CombinedGateway{}, nil, fmt.Errorf("balance for %s: %w", currency, err)
		}
		balances[domain.Currency(currency)] = d.InexactFloat64()
	}

	x := &Exchange{
		log:        slog.Default().With(slog.String("component", "gateway:sim")),
		cfg:        cfg,
		tp:         tp,
		balances:   balances,
		held:       make(map[domain.Currency]float64),
		live:       make(map[string]*simOrder),
		byClientID: make(map[string]string),
		mid:        cfg.InitialPrice,
	}

	bundle := gateway.CombinedGateway{
		MarketData: (*marketDataGateway)(x),
		OrderEntry: (*orderEntryGateway)(x),
		Position:   (*positionGateway)(x),
		Details:    details{cfg: cfg},
	}
	return bundle, x, nil
}

// Connect brings both channels up and starts the position poll and the
// synthetic book.
func (x *Exchange) Connect() {
	if x.connected {
		return
	}
	x.connected = true
	x.mdConnect.Trigger(domain.Connected)
	x.oeConnect.Trigger(domain.Connected)

	// near-immediate first poll, then the regular cadence
	x.tp.SetTimeout(10*time.Millisecond, x.pollPositions)
	x.stops = append(x.stops, x.tp.SetInterval(x.cfg.PositionPollInterval, x.pollPositions))

	x.publishBook()
	if x.cfg.BookInterval > 0 {
		x.stops = append(x.stops, x.tp.SetInterval(x.cfg.BookInterval, x.walkBook))
	}
	x.log.Info("sim exchange connected", slog.String("pair", x.cfg.Pair.String()))
}

// Disconnect drops both channels and stops the timers.
func (x *Exchange) Disconnect() {
	if !x.connected {
		return
	}
	x.connected = false
	for _, stop := range x.stops {
		stop()
	}
	x.stops = nil
	x.mdConnect.Trigger(domain.Disconnected)
	x.oeConnect.Trigger(domain.Disconnected)
}

func (x *Exchange) pollPositions() {
	for currency, amount := range x.balances {
		x.positionUpdate.Trigger(domain.CurrencyPosition{
			Amount:     amount,
			HeldAmount: x.held[currency],
			Currency:   currency,
		})
	}
}

func (x *Exchange) walkBook() {
	x.mid += x.cfg.MinTick * float64(rand.IntN(5)-2)
	if x.mid < x.cfg.MinTick*bookDepth {
		x.mid = x.cfg.InitialPrice
	}
	x.publishBook()
}

func (x *Exchange) publishBook() {
	bids := make([]domain.MarketSide, bookDepth)
	asks := make([]domain.MarketSide, bookDepth)
	half := x.cfg.MinTick / 2
	for i := 0; i < bookDepth; i++ {
		offset := half + float64(i)*x.cfg.MinTick
		size := x.cfg.MinSize * float64(10*(i+1))
		bids[i] = domain.MarketSide{Price: x.mid - offset, Size: size}
		asks[i] = domain.MarketSide{Price: x.mid + offset, Size: size}
	}
	x.marketData.Trigger(domain.Market{Bids: bids, Asks: asks, Time: x.tp.Now()})
}

func (x *Exchange) sendOrder(rpt domain.OrderStatusReport) error {
	if !x.connected {
		return domain.ErrGatewayDisconnected
	}
	x.nextExchID++
	order := &simOrder{
		clientID:   rpt.OrderID,
		exchangeID: fmt.Sprintf("SIM-%d", x.nextExchID),
		side:       rpt.Side,
		price:      rpt.Price,
		leaves:     rpt.Quantity,
	}
	clientID := rpt.OrderID

	// ack on the next loop turn, like a round trip would
	x.tp.SetTimeout(0, func() {
		x.live[order.exchangeID] = order
		x.byClientID[clientID] = order.exchangeID
		status := domain.OrderStatusWorking
		x.orderUpdate.Trigger(domain.OrderStatusUpdate{
			OrderID:     clientID,
			ExchangeID:  &order.exchangeID,
			OrderStatus: &status,
		})
	})
	return nil
}

func (x *Exchange) cancelOrder(rpt domain.OrderStatusReport) error {
	if rpt.Done {
		// cancel signal for an order we never knew; nothing to do
		return nil
	}
	if !x.connected {
		return domain.ErrGatewayDisconnected
	}
	exchangeID := rpt.ExchangeID
	clientID := rpt.OrderID
	x.tp.SetTimeout(0, func() {
		order, ok := x.live[exchangeID]
		if !ok {
			x.rejectCancel(clientID)
			return
		}
		x.retire(order)
		status := domain.OrderStatusCancelled
		leaves := 0.0
		x.orderUpdate.Trigger(domain.OrderStatusUpdate{
			OrderID:        order.clientID,
			ExchangeID:     &order.exchangeID,
			OrderStatus:    &status,
			LeavesQuantity: &leaves,
			Done:           true,
		})
	})
	return nil
}

func (x *Exchange) rejectCancel(clientID string) {
	status := domain.OrderStatusWorking
	x.orderUpdate.Trigger(domain.OrderStatusUpdate{
		OrderID:        clientID,
		OrderStatus:    &status,
		CancelRejected: true,
	})
}

func (x *Exchange) replaceOrder(rpt domain.OrderStatusReport) error {
	if !x.connected {
		return domain.ErrGatewayDisconnected
	}
	exchangeID := rpt.ExchangeID
	price := rpt.Price
	quantity := rpt.Quantity
	x.tp.SetTimeout(0, func() {
		order, ok := x.live[exchangeID]
		if !ok {
			return
		}
		order.price = price
		order.leaves = quantity
		status := domain.OrderStatusWorking
		x.orderUpdate.Trigger(domain.OrderStatusUpdate{
			OrderID:        order.clientID,
			ExchangeID:     &order.exchangeID,
			OrderStatus:    &status,
			Price:          &price,
			Quantity:       &quantity,
			LeavesQuantity: &quantity,
		})
	})
	return nil
}

// Fill executes quantity of the identified order at price, updating the
// paper balances and emitting the fill delta.
func (x *Exchange) Fill(clientOrderID string, quantity, price float64, liquidity domain.Liquidity) {
	exchangeID, ok := x.byClientID[clientOrderID]
	if !ok {
		return
	}
	order, ok := x.live[exchangeID]
	if !ok {
		return
	}
	if quantity > order.leaves {
		quantity = order.leaves
	}
	order.leaves -= quantity

	notional := price * quantity
	if order.side == domain.SideBid {
		x.balances[x.cfg.Pair.Quote] -= notional
		x.balances[x.cfg.Pair.Base] += quantity
	} else {
		x.balances[x.cfg.Pair.Base] -= quantity
		x.balances[x.cfg.Pair.Quote] += notional
	}

	status := domain.OrderStatusWorking
	done := false
	if order.leaves <= 0 {
		status = domain.OrderStatusComplete
		done = true
		x.retire(order)
	}
	leaves := order.leaves
	x.orderUpdate.Trigger(domain.OrderStatusUpdate{
		OrderID:        order.clientID,
		ExchangeID:     &order.exchangeID,
		OrderStatus:    &status,
		LastQuantity:   &quantity,
		LastPrice:      &price,
		LeavesQuantity: &leaves,
		Liquidity:      &liquidity,
		Done:           done,
	})
}

func (x *Exchange) retire(order *simOrder) {
	delete(x.live, order.exchangeID)
	delete(x.byClientID, order.clientID)
}

// LiveOrders reports how many orders rest on the simulated book.
func (x *Exchange) LiveOrders() int {
	return len(x.live)
}

type marketDataGateway Exchange

func (g *marketDataGateway) MarketData() *event.Evt[domain.Market] {
	return &g.marketData
}

func (g *marketDataGateway) ConnectChanged() *event.Evt[domain.ConnectivityStatus] {
	return &g.mdConnect
}

type orderEntryGateway Exchange

func (g *orderEntryGateway) GenerateClientOrderID() string {
	return uuid.NewString()
}

func (g *orderEntryGateway) SendOrder(rpt domain.OrderStatusReport) error {
	return (*Exchange)(g).sendOrder(rpt)
}

func (g *orderEntryGateway) CancelOrder(rpt domain.OrderStatusReport) error {
	return (*Exchange)(g).cancelOrder(rpt)
}

func (g *orderEntryGateway) ReplaceOrder(rpt domain.OrderStatusReport) error {
	return (*Exchange)(g).replaceOrder(rpt)
}

// CancelsByClientOrderID is false: the venue only cancels by its own id,
// which is exactly the race the order broker has to handle.
func (g *orderEntryGateway) CancelsByClientOrderID() bool { return false }

func (g *orderEntryGateway) SupportsCancelAllOpenOrders() bool { return false }

func (g *orderEntryGateway) CancelAllOpenOrders() (int, error) { return 0, nil }

func (g *orderEntryGateway) OrderUpdate() *event.Evt[domain.OrderStatusUpdate] {
	return &g.orderUpdate
}

func (g *orderEntryGateway) ConnectChanged() *event.Evt[domain.ConnectivityStatus] {
	return &g.oeConnect
}

type positionGateway Exchange

func (g *positionGateway) PositionUpdate() *event.Evt[domain.CurrencyPosition] {
	return &g.positionUpdate
}

type details struct {
	cfg Config
}

func (d details) Name() string                 { return d.cfg.ExchangeName }
func (d details) MakeFee() float64             { return d.cfg.MakeFee }
func (d details) TakeFee() float64             { return d.cfg.TakeFee }
func (d details) MinTickIncrement() float64    { return d.cfg.MinTick }
func (d details) MinSize() float64             { return d.cfg.MinSize }
func (d details) HasSelfTradePrevention() bool { return d.cfg.SelfTradePrevention }

func (d details) SupportedCurrencyPairs() []domain.CurrencyPair {
	return []domain.CurrencyPair{d.cfg.Pair}
}

package broker

import (
	"log/slog"
	"math"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/event"
	"github.com/ctubio/tribeca/internal/gateway"
	"github.com/ctubio/tribeca/internal/transport"
)

// Position-report suppression thresholds. Base-denominated components use
// the tight epsilons, quote-denominated ones the loose epsilon. These are
// deliberately unequal; do not unify them.
const (
	baseEps  = 2e-6
	quoteEps = 2e-2
)

// FairValueProvider supplies the reference price positions are valued at.
type FairValueProvider interface {
	LatestFairValue() *domain.FairValue
	FairValueChanged() *event.Evt[domain.FairValue]
}

// ActiveQuoteProvider reports the quotes currently resting on one side.
type ActiveQuoteProvider interface {
	QuotesActive(side domain.Side) []domain.Quote
}

// PositionBroker derives held and free currency positions and
// mark-to-market value from the position feed, the order stream and the
// fair value. A recomputation only replaces the stored report when some
// component moved beyond its epsilon, which keeps floating-point churn
// from turning into report storms.
type PositionBroker struct {
	NewReport event.Evt[domain.PositionReport]

	log        *slog.Logger
	tp         engine.TimeProvider
	base       *ExchangeBroker
	quoter     ActiveQuoteProvider
	fv         FairValueProvider
	publisher  transport.Publisher[domain.PositionReport]
	report     *domain.PositionReport
	currencies map[domain.Currency]domain.CurrencyPosition
}

// NewPositionBroker subscribes to the position gateway, the order broker
// and fair-value changes.
func NewPositionBroker(
	tp engine.TimeProvider,
	base *ExchangeBroker,
	orders *OrderBroker,
	quoter ActiveQuoteProvider,
	fv FairValueProvider,
	posGateway gateway.PositionGateway,
	publisher transport.Publisher[domain.PositionReport],
) *PositionBroker {
	b := &PositionBroker{
		log:        slog.Default().With(slog.String("component", "pos:broker")),
		tp:         tp,
		base:       base,
		quoter:     quoter,
		fv:         fv,
		publisher:  publisher,
		currencies: make(map[domain.Currency]domain.CurrencyPosition),
	}

	publisher.RegisterSnapshot(func() []domain.PositionReport {
		if b.report == nil {
			return nil
		}
		return []domain.PositionReport{*b.report}
	})

	posGateway.PositionUpdate().On(func(pos domain.CurrencyPosition) {
		b.onPositionUpdate(&pos)
	})
	orders.OrderUpdate.On(b.handleOrderUpdate)
	fv.FairValueChanged().On(func(domain.FairValue) {
		b.onPositionUpdate(nil)
	})

	return b
}

// LatestReport returns the current position report, or nil before the
// first valuation.
func (b *PositionBroker) LatestReport() *domain.PositionReport {
	return b.report
}

// GetPosition returns the stored position for a currency, zero when the
// feed has not mentioned it.
func (b *PositionBroker) GetPosition(currency domain.Currency) domain.CurrencyPosition {
	if pos, ok := b.currencies[currency]; ok {
		return pos
	}
	return domain.CurrencyPosition{Currency: currency}
}

func (b *PositionBroker) onPositionUpdate(rpt *domain.CurrencyPosition) {
	if rpt != nil {
		b.currencies[rpt.Currency] = *rpt
	}

	pair := b.base.Pair()
	basePos := b.GetPosition(pair.Base)
	quotePos := b.GetPosition(pair.Quote)
	fv := b.fv.LatestFairValue()
	if fv == nil {
		return
	}

	baseAmount := basePos.Amount
	quoteAmount := quotePos.Amount
	baseValue := baseAmount + quoteAmount/fv.Price + basePos.HeldAmount + quotePos.HeldAmount/fv.Price
	quoteValue := baseAmount*fv.Price + quoteAmount + basePos.HeldAmount*fv.Price + quotePos.HeldAmount

	report := domain.PositionReport{
		BaseAmount:      baseAmount,
		QuoteAmount:     quoteAmount,
		BaseHeldAmount:  basePos.HeldAmount,
		QuoteHeldAmount: quotePos.HeldAmount,
		Value:           baseValue,
		QuoteValue:      quoteValue,
		Pair:            pair,
		Exchange:        b.base.Exchange(),
		Time:            b.tp.Now(),
	}

	if b.report != nil &&
		math.Abs(report.Value-b.report.Value) < baseEps &&
		math.Abs(report.QuoteValue-b.report.QuoteValue) < quoteEps &&
		math.Abs(report.BaseAmount-b.report.BaseAmount) < baseEps &&
		math.Abs(report.QuoteAmount-b.report.QuoteAmount) < quoteEps &&
		math.Abs(report.BaseHeldAmount-b.report.BaseHeldAmount) < baseEps &&
		math.Abs(report.QuoteHeldAmount-b.report.QuoteHeldAmount) < quoteEps {
		return
	}

	b.report = &report
	b.NewReport.Trigger(report)
	b.publisher.Publish(report)
}

// handleOrderUpdate re-derives the held amount on the updated order's side
// from the quotes currently resting there: reserved size (priced into
// quote terms for bids) moves from free to held.
func (b *PositionBroker) handleOrderUpdate(o domain.OrderStatusReport) {
	quotes := b.quoter.QuotesActive(o.Side)
	if len(quotes) == 0 || b.report == nil {
		return
	}

	var amount float64
	if o.Side == domain.SideAsk {
		amount = b.report.BaseAmount + b.report.BaseHeldAmount
	} else {
		amount = b.report.QuoteAmount + b.report.QuoteHeldAmount
	}

	var heldAmount float64
	for _, q := range quotes {
		reserved := q.Size
		if o.Side == domain.SideBid {
			reserved *= q.Price
		}
		amount -= reserved
		heldAmount += reserved
	}

	currency := o.Pair.Quote
	if o.Side == domain.SideAsk {
		currency = o.Pair.Base
	}
	b.onPositionUpdate(&domain.CurrencyPosition{
		Amount:     amount,
		HeldAmount: heldAmount,
		Currency:   currency,
	})
}

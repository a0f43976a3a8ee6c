package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ctubio/tribeca/internal/app"
	"github.com/ctubio/tribeca/internal/broker"
	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/engine"
	"github.com/ctubio/tribeca/internal/gateway/sim"
	"github.com/ctubio/tribeca/internal/quoting"
	"github.com/ctubio/tribeca/internal/transport"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Engine loop and clock. Everything below runs on this single loop.
	loop := engine.NewLoop(1024)
	tp := engine.NewRealTime(loop)

	// 5. Transport hub and its typed topics
	hub := transport.NewHub(loop.Post, slog.Default())
	marketPublisher := transport.NewPublisher[domain.Market](hub, transport.TopicMarketData)
	orderPublisher := transport.NewPublisher[domain.OrderStatusReport](hub, transport.TopicOrderStatus)
	tradePublisher := transport.NewPublisher[domain.Trade](hub, transport.TopicTrades)
	tradeChartPublisher := transport.NewPublisher[domain.TradeChart](hub, transport.TopicTradeChart)
	positionPublisher := transport.NewPublisher[domain.PositionReport](hub, transport.TopicPosition)
	connectivityPublisher := transport.NewPublisher[domain.ConnectivityStatus](hub, transport.TopicConnectivity)
	submitReceiver := transport.NewReceiver[domain.OrderRequestFromUI](hub, transport.TopicSubmitNewOrder)
	cancelReceiver := transport.NewReceiver[domain.OrderCancel](hub, transport.TopicCancelOrder)
	cancelAllReceiver := transport.NewReceiver[struct{}](hub, transport.TopicCancelAllOrders)
	cleanClosedReceiver := transport.NewReceiver[struct{}](hub, transport.TopicCleanClosed)
	cleanAllReceiver := transport.NewReceiver[struct{}](hub, transport.TopicCleanAll)

	// 6. Quoting parameters
	mode, err := quoting.ParseMode(cfg.Quoting.Mode)
	if err != nil {
		slog.Error("❌ Invalid quoting mode", slog.Any("error", err))
		os.Exit(1)
	}
	pongAt, err := quoting.ParsePongAt(cfg.Quoting.PongAt)
	if err != nil {
		slog.Error("❌ Invalid pongAt", slog.Any("error", err))
		os.Exit(1)
	}
	params := quoting.NewParametersRepository(quoting.Parameters{
		Mode:             mode,
		PongAt:           pongAt,
		WidthPong:        cfg.Quoting.WidthPong.InexactFloat64(),
		CancelOrdersAuto: cfg.Quoting.CancelOrdersAuto,
	})

	// 7. Simulated venue
	gw, exchange, err := sim.New(sim.Config{
		ExchangeName:         cfg.Exchange.Name,
		Pair:                 cfg.Exchange.Pair,
		MinTick:              cfg.Exchange.TickSize.InexactFloat64(),
		MinSize:              cfg.Exchange.MinSize.InexactFloat64(),
		MakeFee:              cfg.Exchange.MakeFee.InexactFloat64(),
		TakeFee:              cfg.Exchange.TakeFee.InexactFloat64(),
		SelfTradePrevention:  cfg.Exchange.SelfTradePrevention,
		InitialPrice:         cfg.Sim.InitialPrice.InexactFloat64(),
		Balances:             cfg.Sim.Balances,
		PositionPollInterval: cfg.PositionPollInterval(),
		BookInterval:         cfg.BookInterval(),
	}, tp)
	if err != nil {
		slog.Error("❌ Failed to build exchange gateway", slog.Any("error", err))
		os.Exit(1)
	}

	// 8. Brokers. Construction order matters: the quoter must observe
	// order updates before the position broker recomputes off them.
	base := broker.NewExchangeBroker(cfg.Exchange.Pair, gw.MarketData, gw.Details, gw.OrderEntry, connectivityPublisher)
	mdBroker := broker.NewMarketDataBroker(gw.MarketData, marketPublisher)
	fv := quoting.NewFairValueEngine(&mdBroker.MarketData, tp, base.MinTickIncrement())
	orders := broker.NewOrderBroker(tp, params, base, gw.OrderEntry, bootstrap.Store,
		orderPublisher, tradePublisher, tradeChartPublisher,
		submitReceiver, cancelReceiver, cancelAllReceiver, cleanClosedReceiver, cleanAllReceiver,
		broker.NewOrderStateCache(), bootstrap.InitTrades)
	quoter := quoting.NewQuoter(&orders.OrderUpdate)
	broker.NewPositionBroker(tp, base, orders, quoter, fv, gw.Position, positionPublisher)

	// 9. Web transport
	go func() {
		if err := hub.Run(cfg.Transport.ListenAddr); err != nil {
			slog.Error("Transport hub failed", slog.Any("error", err))
		}
	}()

	loop.Post(exchange.Connect)

	slog.InfoContext(ctx, "✨ tribeca fully operational. Press Ctrl+C to exit.",
		slog.String("exchange", cfg.Exchange.Name),
		slog.String("pair", cfg.Exchange.Pair.String()),
		slog.String("mode", cfg.Quoting.Mode))

	// The loop blocks here until the shutdown signal cancels the context.
	loop.Run(ctx)

	slog.Info("👋 Shutting down gracefully...")
}

// Command engine wires the event bus, OMS, paper gateway, and a signal
// adapter strategy into a running trading loop, shutting down cleanly on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aihedge/tradecore/config"
	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/logging"
	"github.com/aihedge/tradecore/metrics"
	"github.com/aihedge/tradecore/oms"
	"github.com/aihedge/tradecore/paper"
	"github.com/aihedge/tradecore/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Println("╔══════════════════════════════════════════╗")
	log.Println("║         tradecore engine starting         ║")
	log.Println("╚══════════════════════════════════════════╝")

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	timerInterval, err := time.ParseDuration(cfg.Bus.TimerInterval)
	if err != nil {
		log.Fatalf("invalid BUS_TIMER_INTERVAL %q: %v", cfg.Bus.TimerInterval, err)
	}

	bus := event.New(timerInterval, logging.Default())
	bus.Start()
	defer bus.Stop()

	omsService := oms.New(bus)

	gw := paper.New(bus, logging.Default())
	if err := gw.Connect(map[string]any{"initial_cash": cfg.Gateway.InitialCash}); err != nil {
		log.Fatalf("failed to connect paper gateway: %v", err)
	}
	defer gw.Close()

	symbols := []string{"BTC/USDT", "ETH/USDT"}
	base := strategy.NewBase(omsService, gw, bus, "llm_crypto", symbols)
	adapter := strategy.NewSignalAdapter(base, strategy.DefaultPriceAdd)
	defer adapter.Close()
	adapter.OnInit()

	log.Printf("engine ready, trading %v through %s", symbols, paper.DefaultName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("shutdown signal received, draining event bus")
}

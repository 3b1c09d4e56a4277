package strategy

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/model"
	"github.com/aihedge/tradecore/oms"
	"github.com/aihedge/tradecore/paper"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newHarness(t *testing.T, symbols []string) (*Base, *oms.Service, *paper.Gateway, *event.Bus) {
	t.Helper()
	bus := event.New(0, nil)
	bus.Start()
	t.Cleanup(bus.Stop)

	omsService := oms.New(bus)
	gw := paper.New(bus, nil)
	if err := gw.Connect(map[string]any{"initial_cash": 100000.0}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(gw.Close)

	base := NewBase(omsService, gw, bus, "test-strategy", symbols)
	t.Cleanup(base.Close)

	return base, omsService, gw, bus
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// Scenario 3: target reconciliation.
func TestExecuteTradingOpensPositionTowardTarget(t *testing.T) {
	base, _, gw, bus := newHarness(t, []string{"AAPL"})

	var mu sync.Mutex
	var orders []model.OrderData
	bus.RegisterGeneral(func(evt event.Event) {
		if o, ok := evt.Data.(model.OrderData); ok {
			mu.Lock()
			orders = append(orders, o)
			mu.Unlock()
		}
	})

	base.SetTarget("AAPL", 100)
	bar := model.BarData{Symbol: "AAPL", Close: 150}
	base.ExecuteTrading(map[string]model.BarData{"AAPL": bar}, 0.001)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(orders) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, o := range orders {
		if o.Direction == model.Long && o.Volume == 100 && approxEqual(o.Price, 150.15) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a LONG LIMIT order vol=100 price=150.15, got %+v", orders)
	}
	_ = gw
}

// Scenario 4: cancel-before-reorder.
func TestExecuteTradingCancelsExistingOrderFirst(t *testing.T) {
	base, _, _, bus := newHarness(t, []string{"AAPL"})

	base.SetTarget("AAPL", 1)
	base.ExecuteTrading(map[string]model.BarData{"AAPL": {Symbol: "AAPL", Close: 1.0}}, 0)

	waitUntil(t, func() bool {
		base.mu.Lock()
		defer base.mu.Unlock()
		return len(base.activeOrderIDs) == 1
	})

	var mu sync.Mutex
	var cancelled, reordered []model.OrderData
	bus.RegisterGeneral(func(evt event.Event) {
		if o, ok := evt.Data.(model.OrderData); ok {
			mu.Lock()
			defer mu.Unlock()
			if o.Status == model.Cancelled {
				cancelled = append(cancelled, o)
			}
			if o.Status == model.Submitting {
				reordered = append(reordered, o)
			}
		}
	})

	base.SetTarget("AAPL", 20)
	base.ExecuteTrading(map[string]model.BarData{"AAPL": {Symbol: "AAPL", Close: 150}}, 0.001)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cancelled) >= 1 && len(reordered) >= 1
	})

	mu.Lock()
	defer mu.Unlock()
	foundNew := false
	for _, o := range reordered {
		if approxEqual(o.Price, 150.15) {
			foundNew = true
		}
	}
	if !foundNew {
		t.Fatalf("expected new order at 150.15 after cancel, got %+v", reordered)
	}
}

// An order that fills immediately on submission — the gateway already holds
// a price that crosses the limit, so the terminal ORDER event is published
// before SendOrder returns — must not leave a stale entry in the strategy's
// active set when the dispatcher races the submitting goroutine.
func TestImmediateFillDoesNotLeaveStaleActiveOrder(t *testing.T) {
	base, omsService, _, bus := newHarness(t, []string{"AAPL"})

	bar := model.BarData{Symbol: "AAPL", Close: 150}
	bus.Put(event.Event{Type: event.EventBar, Data: bar})
	waitUntil(t, func() bool {
		_, ok := omsService.GetBar("AAPL")
		return ok
	})

	base.SetTarget("AAPL", 10)
	base.ExecuteTrading(map[string]model.BarData{"AAPL": bar}, 0.001)

	// Re-publish the bar so the order fills even if the submit narrowly
	// preceded the gateway's first price observation.
	bus.Put(event.Event{Type: event.EventBar, Data: bar})

	waitUntil(t, func() bool {
		base.mu.Lock()
		defer base.mu.Unlock()
		return len(base.activeOrderIDs) == 0 && base.posData["AAPL"] == 10
	})

	base.mu.Lock()
	defer base.mu.Unlock()
	if len(base.orders) != 1 {
		t.Fatalf("expected exactly one mirrored order, got %d", len(base.orders))
	}
	for _, o := range base.orders {
		if o.Status != model.AllTraded {
			t.Errorf("mirrored order status = %v, want all_traded", o.Status)
		}
	}
}

// Scenario 5: hold is a no-op.
func TestSignalHoldLeavesTargetUnchanged(t *testing.T) {
	base, _, _, bus := newHarness(t, []string{"AAPL"})
	adapter := NewSignalAdapter(base, 0.001)

	base.SetTarget("AAPL", 2.5)

	var mu sync.Mutex
	var orders []model.OrderData
	bus.RegisterGeneral(func(evt event.Event) {
		if o, ok := evt.Data.(model.OrderData); ok {
			mu.Lock()
			orders = append(orders, o)
			mu.Unlock()
		}
	})

	adapter.OnSignal(map[string]any{
		"AAPL": map[string]any{"action": "hold", "quantity": 0.0},
	})

	time.Sleep(20 * time.Millisecond)

	if base.GetTarget("AAPL") != 2.5 {
		t.Errorf("target changed to %v, want unchanged 2.5", base.GetTarget("AAPL"))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(orders) != 0 {
		t.Errorf("expected no orders for hold, got %+v", orders)
	}
}

// Scenario 6: sell-from-empty floors the target at zero.
func TestSignalSellFromEmptyFloorsTargetAtZero(t *testing.T) {
	base, omsService, _, _ := newHarness(t, []string{"ETH"})
	adapter := NewSignalAdapter(base, 0.001)

	adapter.OnSignal(map[string]any{
		"ETH": map[string]any{"action": "sell", "quantity": 0.005},
	})

	if got := base.GetTarget("ETH"); got != 0 {
		t.Errorf("target = %v, want floored to 0", got)
	}
	_ = omsService
}

package paper

import (
	"sync"
	"testing"
	"time"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/model"
)

func newTestGateway(t *testing.T, initialCash float64) (*Gateway, *event.Bus) {
	t.Helper()
	bus := event.New(0, nil)
	bus.Start()
	t.Cleanup(bus.Stop)

	gw := New(bus, nil)
	if err := gw.Connect(map[string]any{"initial_cash": initialCash}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(gw.Close)
	return gw, bus
}

type orderRecorder struct {
	mu     sync.Mutex
	orders []model.OrderData
	trades []model.TradeData
}

func attachRecorder(bus *event.Bus) *orderRecorder {
	r := &orderRecorder{}
	bus.Register(event.EventOrder, func(evt event.Event) {
		if o, ok := evt.Data.(model.OrderData); ok {
			r.mu.Lock()
			r.orders = append(r.orders, o)
			r.mu.Unlock()
		}
	})
	bus.Register(event.EventTrade, func(evt event.Event) {
		if tr, ok := evt.Data.(model.TradeData); ok {
			r.mu.Lock()
			r.trades = append(r.trades, tr)
			r.mu.Unlock()
		}
	})
	return r
}

func (r *orderRecorder) ordersSnapshot() []model.OrderData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.OrderData(nil), r.orders...)
}

func (r *orderRecorder) tradesSnapshot() []model.TradeData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TradeData(nil), r.trades...)
}

func waitForOrders(t *testing.T, r *orderRecorder, n int) []model.OrderData {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if orders := r.ordersSnapshot(); len(orders) >= n {
			return orders
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected at least %d order events, got %d", n, len(r.ordersSnapshot()))
	return nil
}

// Scenario 1: tick-free limit fill.
func TestScenarioTickFreeLimitFill(t *testing.T) {
	gw, bus := newTestGateway(t, 100000)
	rec := attachRecorder(bus)

	gw.SendOrder(model.OrderRequest{
		Symbol: "AAPL", Direction: model.Long, Action: model.Open,
		OrderType: model.Limit, Volume: 10, Price: 140,
	})
	bus.Put(event.Event{Type: event.EventBar, Data: model.BarData{Symbol: "AAPL", Close: 135}})

	orders := waitForOrders(t, rec, 2)
	if orders[0].Status != model.Submitting {
		t.Errorf("first order status = %v, want submitting", orders[0].Status)
	}
	last := orders[len(orders)-1]
	if last.Status != model.AllTraded || last.Traded != 10 {
		t.Errorf("final order = %+v, want ALLTRADED traded=10", last)
	}

	trades := rec.tradesSnapshot()
	if len(trades) != 1 || trades[0].Price != 140 || trades[0].Volume != 10 {
		t.Fatalf("trades = %+v, want one trade price=140 vol=10", trades)
	}

	gw.mu.Lock()
	volume := gw.positions["AAPL"]
	gw.mu.Unlock()
	if volume != 10 {
		t.Errorf("positions[AAPL] = %v, want 10", volume)
	}

	gw.mu.Lock()
	cash := gw.cash
	gw.mu.Unlock()
	if cash != 98600 {
		t.Errorf("cash = %v, want 98600", cash)
	}
}

// Scenario 2: insufficient funds rejection.
func TestScenarioInsufficientFundsRejection(t *testing.T) {
	gw, bus := newTestGateway(t, 100)
	rec := attachRecorder(bus)

	bus.Put(event.Event{Type: event.EventTick, Data: model.TickData{Symbol: "BTC", BidPrice: 50000, AskPrice: 50000}})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		gw.mu.Lock()
		last := gw.lastPrices["BTC"]
		gw.mu.Unlock()
		if last == 50000 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	gw.SendOrder(model.OrderRequest{
		Symbol: "BTC", Direction: model.Long, Action: model.Open,
		OrderType: model.Market, Volume: 1, Price: 50000,
	})

	orders := waitForOrders(t, rec, 2)
	if orders[0].Status != model.Submitting {
		t.Fatalf("first order status = %v, want submitting", orders[0].Status)
	}
	if orders[1].Status != model.Rejected {
		t.Fatalf("second order status = %v, want rejected", orders[1].Status)
	}

	gw.mu.Lock()
	cash := gw.cash
	gw.mu.Unlock()
	if cash != 100 {
		t.Errorf("cash changed on rejection: %v, want 100", cash)
	}
}

// Boundary: market order with no known last price falls back to req.Price.
func TestMarketOrderFallsBackToRequestPrice(t *testing.T) {
	gw, bus := newTestGateway(t, 100000)
	rec := attachRecorder(bus)

	gw.SendOrder(model.OrderRequest{
		Symbol: "AAPL", Direction: model.Long, Action: model.Open,
		OrderType: model.Market, Volume: 1, Price: 123.45,
	})

	trades := func() []model.TradeData {
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if tr := rec.tradesSnapshot(); len(tr) == 1 {
				return tr
			}
			time.Sleep(time.Millisecond)
		}
		t.Fatal("no trade recorded")
		return nil
	}()

	if trades[0].Price != 123.45 {
		t.Errorf("fill price = %v, want 123.45 (the request price)", trades[0].Price)
	}
}

// Boundary: selling more than held fills only the held volume and rejects
// if nothing is held at all.
func TestSellFromEmptyIsRejected(t *testing.T) {
	gw, bus := newTestGateway(t, 100000)
	rec := attachRecorder(bus)

	gw.SendOrder(model.OrderRequest{
		Symbol: "ETH", Direction: model.Short, Action: model.Close,
		OrderType: model.Market, Volume: 1, Price: 2000,
	})

	orders := waitForOrders(t, rec, 2)
	if orders[1].Status != model.Rejected {
		t.Fatalf("expected REJECTED selling from empty position, got %v", orders[1].Status)
	}
}

func TestSellClampsToHeldVolume(t *testing.T) {
	gw, bus := newTestGateway(t, 100000)
	rec := attachRecorder(bus)

	gw.SendOrder(model.OrderRequest{
		Symbol: "ETH", Direction: model.Long, Action: model.Open,
		OrderType: model.Market, Volume: 5, Price: 2000,
	})
	waitForOrders(t, rec, 2)

	gw.SendOrder(model.OrderRequest{
		Symbol: "ETH", Direction: model.Short, Action: model.Close,
		OrderType: model.Market, Volume: 100, Price: 2100,
	})

	orders := waitForOrders(t, rec, 4)
	last := orders[len(orders)-1]
	if last.Status != model.AllTraded || last.Traded != 5 || last.Volume != 5 {
		t.Fatalf("expected close clamped to held volume 5, got %+v", last)
	}

	gw.mu.Lock()
	remaining := gw.positions["ETH"]
	gw.mu.Unlock()
	if remaining != 0 {
		t.Errorf("position not fully closed: %v", remaining)
	}
}

func TestCancelOrderRemovesPendingLimit(t *testing.T) {
	gw, bus := newTestGateway(t, 100000)
	rec := attachRecorder(bus)

	gw.SendOrder(model.OrderRequest{
		Symbol: "AAPL", Direction: model.Long, Action: model.Open,
		OrderType: model.Limit, Volume: 10, Price: 1.0,
	})
	submitted := waitForOrders(t, rec, 1)

	gw.CancelOrder(model.CancelRequest{Symbol: "AAPL", OrderID: submitted[0].OrderID})

	orders := waitForOrders(t, rec, 2)
	if orders[len(orders)-1].Status != model.Cancelled {
		t.Fatalf("expected CANCELLED, got %+v", orders[len(orders)-1])
	}

	gw.mu.Lock()
	_, pending := gw.pendingOrders[orders[len(orders)-1].OrderID]
	gw.mu.Unlock()
	if pending {
		t.Error("cancelled order still in pendingOrders")
	}
}

func TestCancelUnknownOrderIsNoOp(t *testing.T) {
	gw, _ := newTestGateway(t, 100000)
	gw.CancelOrder(model.CancelRequest{Symbol: "AAPL", OrderID: "doesnotexist"})
}

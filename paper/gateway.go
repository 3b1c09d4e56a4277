// Package paper implements an in-process simulated exchange: a reference
// Gateway implementation for tests and paper trading. Ledger state lives
// behind a single mutex, with publishes to the bus always happening after
// the lock is released to avoid re-entrant deadlock. Margin, leverage, and
// commission are not modeled; this engine only ever tracks a flat long
// position per symbol plus a cash balance.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/gateway"
	"github.com/aihedge/tradecore/logging"
	"github.com/aihedge/tradecore/model"
)

// DefaultName is the gateway identity used in AccountData.AccountID.
const DefaultName = "PAPER"

// DefaultInitialCash is used when Connect's setting omits initial_cash.
const DefaultInitialCash = 100_000.0

// Gateway is a simulated exchange: market orders fill instantly; a limit
// order fills at once if the last known price already crosses its limit,
// and otherwise queues until a tick or bar crosses the limit price. All
// ledger state is guarded by mu; On* publishes always happen after mu is
// released so a handler that calls back into the gateway cannot deadlock.
type Gateway struct {
	gateway.Base
	bus    *event.Bus
	logger *logging.Logger

	mu            sync.Mutex
	cash          float64
	positions     map[string]float64 // symbol -> volume (long only)
	avgPrices     map[string]float64 // symbol -> volume-weighted cost
	pendingOrders map[string]model.OrderData
	lastPrices    map[string]float64
	orderCounter  int

	tickHandler event.Handler
	barHandler  event.Handler
}

// New constructs a Gateway bound to bus. Call Connect before use.
func New(bus *event.Bus, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		Base:          gateway.NewBase(bus, DefaultName),
		bus:           bus,
		logger:        logger,
		cash:          DefaultInitialCash,
		positions:     make(map[string]float64),
		avgPrices:     make(map[string]float64),
		pendingOrders: make(map[string]model.OrderData),
		lastPrices:    make(map[string]float64),
	}
	g.tickHandler = func(evt event.Event) { g.onTickEvent(evt) }
	g.barHandler = func(evt event.Event) { g.onBarEvent(evt) }
	bus.Register(event.EventTick, g.tickHandler)
	bus.Register(event.EventBar, g.barHandler)
	return g
}

// Connect sets the initial cash balance and publishes the opening account
// snapshot. setting["initial_cash"] overrides DefaultInitialCash.
func (g *Gateway) Connect(setting map[string]any) error {
	cash := DefaultInitialCash
	if v, ok := setting["initial_cash"]; ok {
		switch n := v.(type) {
		case float64:
			cash = n
		case int:
			cash = float64(n)
		default:
			return fmt.Errorf("paper: initial_cash has unsupported type %T", v)
		}
	}
	g.mu.Lock()
	g.cash = cash
	g.mu.Unlock()
	g.QueryAccount()
	return nil
}

// Subscribe is a no-op: the paper gateway accepts any symbol.
func (g *Gateway) Subscribe(symbol string) error { return nil }

// Close unregisters the gateway's tick/bar handlers.
func (g *Gateway) Close() {
	g.bus.Unregister(event.EventTick, g.tickHandler)
	g.bus.Unregister(event.EventBar, g.barHandler)
}

// SendOrder accepts an order request, assigns a PAPERnnnnnn id, publishes the
// SUBMITTING snapshot synchronously, then fills or queues it.
func (g *Gateway) SendOrder(req model.OrderRequest) string {
	g.mu.Lock()
	g.orderCounter++
	orderID := fmt.Sprintf("PAPER%06d", g.orderCounter)
	g.mu.Unlock()

	order := req.CreateOrderData(orderID)
	g.OnOrder(order)

	if req.OrderType == model.Market {
		g.mu.Lock()
		fillPrice := g.lastPrices[req.Symbol]
		g.mu.Unlock()
		if fillPrice <= 0 {
			fillPrice = req.Price
		}
		g.fillOrder(order, fillPrice)
	} else {
		g.mu.Lock()
		g.pendingOrders[orderID] = order
		last := g.lastPrices[req.Symbol]
		g.mu.Unlock()
		if last > 0 {
			g.tryFillLimit(order, last)
		}
	}

	return order.VtOrderID()
}

// CancelOrder removes a pending limit order and publishes CANCELLED. A
// request for an unknown or already-filled order is silently ignored.
func (g *Gateway) CancelOrder(req model.CancelRequest) {
	g.mu.Lock()
	order, ok := g.pendingOrders[req.OrderID]
	if ok {
		delete(g.pendingOrders, req.OrderID)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	order.Status = model.Cancelled
	g.OnOrder(order)
	g.logger.Info("order cancelled", logging.Symbol(order.Symbol), logging.OrderID(order.OrderID))
}

// QueryAccount publishes the current cash balance as the account snapshot.
func (g *Gateway) QueryAccount() {
	g.mu.Lock()
	balance := g.cash
	g.mu.Unlock()
	g.OnAccount(model.AccountData{AccountID: DefaultName, Balance: balance})
}

// QueryPosition publishes one PositionData per symbol with nonzero volume.
func (g *Gateway) QueryPosition() {
	g.mu.Lock()
	symbols := make([]string, 0, len(g.positions))
	volumes := make(map[string]float64, len(g.positions))
	avgs := make(map[string]float64, len(g.avgPrices))
	for symbol, vol := range g.positions {
		symbols = append(symbols, symbol)
		volumes[symbol] = vol
	}
	for symbol, avg := range g.avgPrices {
		avgs[symbol] = avg
	}
	g.mu.Unlock()

	for _, symbol := range symbols {
		volume := volumes[symbol]
		if volume == 0 {
			continue
		}
		g.OnPosition(model.PositionData{
			Symbol:    symbol,
			Direction: model.Long,
			Volume:    volume,
			AvgPrice:  avgs[symbol],
		})
	}
}

// QueryHistory is unsupported by the paper gateway; it always returns an
// empty slice.
func (g *Gateway) QueryHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.BarData, error) {
	return nil, nil
}

func (g *Gateway) onTickEvent(evt event.Event) {
	tick, ok := evt.Data.(model.TickData)
	if !ok {
		return
	}
	mid := tick.MidPrice()
	g.mu.Lock()
	g.lastPrices[tick.Symbol] = mid
	g.mu.Unlock()
	g.checkPendingOrders(tick.Symbol, mid)
}

func (g *Gateway) onBarEvent(evt event.Event) {
	bar, ok := evt.Data.(model.BarData)
	if !ok {
		return
	}
	g.mu.Lock()
	g.lastPrices[bar.Symbol] = bar.Close
	g.mu.Unlock()
	g.checkPendingOrders(bar.Symbol, bar.Close)
}

func (g *Gateway) checkPendingOrders(symbol string, price float64) {
	g.mu.Lock()
	pending := make([]model.OrderData, 0)
	for _, o := range g.pendingOrders {
		if o.Symbol == symbol {
			pending = append(pending, o)
		}
	}
	g.mu.Unlock()

	for _, order := range pending {
		g.tryFillLimit(order, price)
	}
}

// tryFillLimit fills a queued limit order once market price crosses the
// limit: LONG (buy) fills when price <= limit, SHORT (sell/close) fills
// when price >= limit, both at the limit price, not the market price.
func (g *Gateway) tryFillLimit(order model.OrderData, marketPrice float64) {
	var crossed bool
	if order.Direction == model.Long {
		crossed = marketPrice <= order.Price
	} else {
		crossed = marketPrice >= order.Price
	}
	if !crossed {
		return
	}

	g.mu.Lock()
	_, stillPending := g.pendingOrders[order.OrderID]
	if stillPending {
		delete(g.pendingOrders, order.OrderID)
	}
	g.mu.Unlock()
	if !stillPending {
		return
	}
	g.fillOrder(order, order.Price)
}

// fillOrder executes the ledger update for a single fill and publishes the
// resulting ORDER/TRADE events. A LONG fill is rejected outright if cash is
// insufficient; a SHORT fill only ever closes an existing LONG position and
// is clamped to the volume actually held, rejecting only if nothing is held.
// Partial fills are never simulated: a fill is either ALLTRADED or REJECTED.
func (g *Gateway) fillOrder(order model.OrderData, fillPrice float64) {
	volume := order.Volume

	g.mu.Lock()
	if order.Direction == model.Long {
		cost := fillPrice * volume
		if cost > g.cash {
			g.mu.Unlock()
			order.Status = model.Rejected
			g.OnOrder(order)
			g.logger.Warn("order rejected: insufficient funds",
				logging.Symbol(order.Symbol), logging.OrderID(order.OrderID),
				logging.Float64("price", fillPrice), logging.Float64("volume", volume))
			return
		}
		g.cash -= cost
		oldVol := g.positions[order.Symbol]
		oldAvg := g.avgPrices[order.Symbol]
		newVol := oldVol + volume
		if newVol > 0 {
			g.avgPrices[order.Symbol] = (oldAvg*oldVol + fillPrice*volume) / newVol
		} else {
			g.avgPrices[order.Symbol] = 0
		}
		g.positions[order.Symbol] = newVol
	} else {
		held := g.positions[order.Symbol]
		actual := volume
		if held < actual {
			actual = held
		}
		if actual <= 0 {
			g.mu.Unlock()
			order.Status = model.Rejected
			g.OnOrder(order)
			g.logger.Warn("order rejected: no position to close",
				logging.Symbol(order.Symbol), logging.OrderID(order.OrderID))
			return
		}
		g.cash += fillPrice * actual
		g.positions[order.Symbol] = held - actual
		volume = actual
	}
	g.mu.Unlock()

	order.Status = model.AllTraded
	order.Volume = volume // a clamped close reports the volume actually filled
	order.Traded = volume
	g.OnOrder(order)

	trade := model.TradeData{
		Symbol:    order.Symbol,
		OrderID:   order.OrderID,
		TradeID:   uuid.NewString()[:8],
		Direction: order.Direction,
		Price:     fillPrice,
		Volume:    volume,
		Timestamp: time.Now(),
	}
	g.OnTrade(trade)
	g.logger.Info("order filled",
		logging.Symbol(trade.Symbol), logging.OrderID(order.OrderID), logging.TradeID(trade.TradeID),
		logging.Float64("price", trade.Price), logging.Float64("volume", trade.Volume))

	g.QueryAccount()
}

// Package strategy implements the target-position reconciliation template
// and its concrete signal-adapter strategy. A strategy keeps self-owned
// order and position mirrors, fed from its own bus subscriptions, so it
// stays usable independently of the OMS snapshot.
package strategy

import (
	"strings"
	"sync"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/gateway"
	"github.com/aihedge/tradecore/model"
	"github.com/aihedge/tradecore/oms"
)

// Handlers is the concrete-strategy interface every strategy implements.
// Concrete strategies embed Base and supply these methods; Base itself
// never calls them, so the owner of the strategy invokes them (cmd/engine
// calls OnInit).
type Handlers interface {
	OnInit()
	OnBar(bars map[string]model.BarData)
	OnSignal(signal map[string]any)
}

// Base is the target-position reconciler. It owns no goroutine of its own:
// callers (a scheduler, a signal producer, or a bar-close handler) invoke
// its exported methods directly. Its internal order/position mirrors are
// protected by mu because ExecuteTrading may be called from a producer
// thread while its ORDER and TRADE handlers run on the bus dispatcher
// goroutine.
type Base struct {
	Engine  *oms.Service
	GW      gateway.Gateway
	Bus     *event.Bus
	Name    string
	Symbols []string

	mu             sync.Mutex
	posData        map[string]float64
	targetData     map[string]float64
	activeOrderIDs map[string]struct{}
	ownedOrderIDs  map[string]struct{}
	orders         map[string]model.OrderData

	orderHandler event.Handler
	tradeHandler event.Handler
}

// NewBase constructs a strategy template bound to engine, gateway and bus,
// trading the given symbols under name (used as OrderRequest.Reference).
// It subscribes to EventOrder/EventTrade so its own order and position
// mirrors track fills independently of the OMS, per the "strategies are
// expected to be independently reusable" requirement.
func NewBase(engine *oms.Service, gw gateway.Gateway, bus *event.Bus, name string, symbols []string) *Base {
	b := &Base{
		Engine:         engine,
		GW:             gw,
		Bus:            bus,
		Name:           name,
		Symbols:        symbols,
		posData:        make(map[string]float64),
		targetData:     make(map[string]float64),
		activeOrderIDs: make(map[string]struct{}),
		ownedOrderIDs:  make(map[string]struct{}),
		orders:         make(map[string]model.OrderData),
	}
	b.orderHandler = func(evt event.Event) { b.onOrderEvent(evt) }
	b.tradeHandler = func(evt event.Event) { b.onTradeEvent(evt) }
	bus.Register(event.EventOrder, b.orderHandler)
	bus.Register(event.EventTrade, b.tradeHandler)
	return b
}

// Close unsubscribes the strategy's bus handlers.
func (b *Base) Close() {
	b.Bus.Unregister(event.EventOrder, b.orderHandler)
	b.Bus.Unregister(event.EventTrade, b.tradeHandler)
}

// SetTarget records the desired holding for symbol.
func (b *Base) SetTarget(symbol string, target float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targetData[symbol] = target
}

// GetTarget returns the desired holding for symbol (0 if never set).
func (b *Base) GetTarget(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetData[symbol]
}

// GetPos returns the strategy's own record of its actual holding for
// symbol, maintained from observed fills rather than from the OMS.
func (b *Base) GetPos(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posData[symbol]
}

// ExecuteTrading cancels every active order this strategy owns, then
// issues compensating orders to close the gap between target and actual
// position for each symbol with a bar present in bars. priceAdd is a
// fractional slippage: positive for buys (price above close), subtracted
// for sells (price below close).
func (b *Base) ExecuteTrading(bars map[string]model.BarData, priceAdd float64) {
	b.CancelAll()

	for symbol, bar := range bars {
		diff := b.GetTarget(symbol) - b.GetPos(symbol)
		switch {
		case diff > 0:
			b.Buy(symbol, bar.Close*(1.0+priceAdd), diff)
		case diff < 0:
			b.Sell(symbol, bar.Close*(1.0-priceAdd), -diff)
		}
	}
}

// Buy sends a LONG OPEN limit order.
func (b *Base) Buy(symbol string, price, volume float64) string {
	return b.sendOrder(symbol, model.Long, model.Open, price, volume)
}

// Sell sends a SHORT CLOSE limit order (sell an existing long).
func (b *Base) Sell(symbol string, price, volume float64) string {
	return b.sendOrder(symbol, model.Short, model.Close, price, volume)
}

// Short sends a SHORT OPEN limit order.
func (b *Base) Short(symbol string, price, volume float64) string {
	return b.sendOrder(symbol, model.Short, model.Open, price, volume)
}

// Cover sends a LONG CLOSE limit order (cover an existing short).
func (b *Base) Cover(symbol string, price, volume float64) string {
	return b.sendOrder(symbol, model.Long, model.Close, price, volume)
}

// CancelAll cancels every order this strategy currently considers active.
// An order whose ORDER event has not been observed yet (submitted but not
// yet dispatched) is cancelled by its composite id — the gateway contract
// makes cancelling an unknown or already-terminal id a safe no-op.
func (b *Base) CancelAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.activeOrderIDs))
	for id := range b.activeOrderIDs {
		ids = append(ids, id)
	}
	orders := make(map[string]model.OrderData, len(ids))
	for _, id := range ids {
		if o, ok := b.orders[id]; ok {
			orders[id] = o
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		if order, ok := orders[id]; ok {
			if order.IsActive() {
				b.GW.CancelOrder(order.CreateCancelRequest())
			}
			continue
		}
		if dot := strings.LastIndex(id, "."); dot > 0 {
			b.GW.CancelOrder(model.CancelRequest{Symbol: id[:dot], OrderID: id[dot+1:]})
		}
	}
}

// OnOrder updates the strategy's order mirror and active-order set. Safe
// to call directly, and is also wired to EventOrder automatically.
func (b *Base) OnOrder(order model.OrderData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[order.VtOrderID()] = order
	if order.IsActive() {
		b.activeOrderIDs[order.VtOrderID()] = struct{}{}
	} else {
		delete(b.activeOrderIDs, order.VtOrderID())
	}
}

// onOrderEvent filters bus-wide ORDER events down to ones this strategy
// recognizes (it only tracks orders it has itself submitted).
func (b *Base) onOrderEvent(evt event.Event) {
	order, ok := evt.Data.(model.OrderData)
	if !ok {
		return
	}
	b.mu.Lock()
	_, owned := b.ownedOrderIDs[order.VtOrderID()]
	b.mu.Unlock()
	if !owned {
		return
	}
	b.OnOrder(order)
}

// onTradeEvent updates the strategy's own position mirror from a fill,
// independent of the OMS snapshot. Only trades for this strategy's symbols
// are applied; LONG fills increase posData, SHORT fills decrease it.
func (b *Base) onTradeEvent(evt event.Event) {
	trade, ok := evt.Data.(model.TradeData)
	if !ok {
		return
	}
	if !b.tradesSymbol(trade.Symbol) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch trade.Direction {
	case model.Long:
		b.posData[trade.Symbol] += trade.Volume
	case model.Short:
		b.posData[trade.Symbol] -= trade.Volume
	}
}

func (b *Base) tradesSymbol(symbol string) bool {
	for _, s := range b.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// GetCashAvailable returns available cash from the latest account
// snapshot, or 0 if no account snapshot has arrived yet.
func (b *Base) GetCashAvailable() float64 {
	acc, ok := b.Engine.GetAccount()
	if !ok {
		return 0
	}
	return acc.Available()
}

// GetPortfolioValue approximates total value as cash plus the mark value
// of every long position, falling back to the position's average price
// when no bar is available for its symbol.
func (b *Base) GetPortfolioValue() float64 {
	cash := b.GetCashAvailable()

	holdings := 0.0
	for _, symbol := range b.Symbols {
		pos, ok := b.Engine.GetPositionBySymbol(symbol, model.Long)
		if !ok || pos.Volume <= 0 {
			continue
		}
		price := pos.AvgPrice
		if bar, ok := b.Engine.GetBar(symbol); ok {
			price = bar.Close
		}
		holdings += pos.Volume * price
	}

	return cash + holdings
}

func (b *Base) sendOrder(symbol string, direction model.Direction, action model.Action, price, volume float64) string {
	req := model.OrderRequest{
		Symbol:    symbol,
		Direction: direction,
		Action:    action,
		OrderType: model.Limit,
		Volume:    volume,
		Price:     price,
		Reference: b.Name,
	}

	// Hold mu across the submit: SendOrder publishes ORDER events (possibly
	// terminal ones) before returning, and onOrderEvent needs this lock to
	// inspect ownership, so the dispatcher cannot process those events until
	// ownership is recorded below. Safe to hold here — gateways only enqueue,
	// they never wait on handlers.
	b.mu.Lock()
	defer b.mu.Unlock()
	vtOrderID := b.GW.SendOrder(req)
	if vtOrderID != "" {
		b.activeOrderIDs[vtOrderID] = struct{}{}
		b.ownedOrderIDs[vtOrderID] = struct{}{}
	}
	return vtOrderID
}

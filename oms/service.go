// Package oms maintains the single in-memory snapshot of trading state: a
// single-writer store, rebuilt purely by consuming events off the bus, that
// gives strategies and the outer runtime O(1) lookups instead of exchange
// round-trips. State is keyed by composite ids throughout, with one owning
// goroutine (the bus dispatcher) performing every mutation.
package oms

import (
	"sync"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/metrics"
	"github.com/aihedge/tradecore/model"
)

// Service is the order management state store. All mutation happens from
// the bus dispatcher goroutine (via the registered handlers); all query
// methods below take a read lock so they remain safe to call concurrently
// from strategy or reporting goroutines.
type Service struct {
	mu sync.RWMutex

	ticks map[string]model.TickData
	bars  map[string]model.BarData

	orders       map[string]model.OrderData
	activeOrders map[string]model.OrderData

	trades map[string]model.TradeData

	positions map[string]model.PositionData
	account   *model.AccountData

	tickHandler     event.Handler
	barHandler      event.Handler
	orderHandler    event.Handler
	tradeHandler    event.Handler
	positionHandler event.Handler
	accountHandler  event.Handler
}

// New constructs an empty Service and registers its handlers on bus. The
// Service is ready for queries immediately; state fills in as events arrive.
func New(bus *event.Bus) *Service {
	s := &Service{
		ticks:        make(map[string]model.TickData),
		bars:         make(map[string]model.BarData),
		orders:       make(map[string]model.OrderData),
		activeOrders: make(map[string]model.OrderData),
		trades:       make(map[string]model.TradeData),
		positions:    make(map[string]model.PositionData),
	}

	s.tickHandler = func(evt event.Event) { s.processTick(evt) }
	s.barHandler = func(evt event.Event) { s.processBar(evt) }
	s.orderHandler = func(evt event.Event) { s.processOrder(evt) }
	s.tradeHandler = func(evt event.Event) { s.processTrade(evt) }
	s.positionHandler = func(evt event.Event) { s.processPosition(evt) }
	s.accountHandler = func(evt event.Event) { s.processAccount(evt) }

	bus.Register(event.EventTick, s.tickHandler)
	bus.Register(event.EventBar, s.barHandler)
	bus.Register(event.EventOrder, s.orderHandler)
	bus.Register(event.EventTrade, s.tradeHandler)
	bus.Register(event.EventPosition, s.positionHandler)
	bus.Register(event.EventAccount, s.accountHandler)

	return s
}

func (s *Service) processTick(evt event.Event) {
	tick, ok := evt.Data.(model.TickData)
	if !ok {
		return
	}
	s.mu.Lock()
	s.ticks[tick.Symbol] = tick
	s.mu.Unlock()
}

func (s *Service) processBar(evt event.Event) {
	bar, ok := evt.Data.(model.BarData)
	if !ok {
		return
	}
	s.mu.Lock()
	s.bars[bar.Symbol] = bar
	s.mu.Unlock()
}

func (s *Service) processOrder(evt event.Event) {
	order, ok := evt.Data.(model.OrderData)
	if !ok {
		return
	}
	vtOrderID := order.VtOrderID()
	s.mu.Lock()
	s.orders[vtOrderID] = order
	if order.IsActive() {
		s.activeOrders[vtOrderID] = order
	} else {
		delete(s.activeOrders, vtOrderID)
	}
	s.mu.Unlock()
	metrics.RecordOrder(string(order.Status))
}

func (s *Service) processTrade(evt event.Event) {
	trade, ok := evt.Data.(model.TradeData)
	if !ok {
		return
	}
	s.mu.Lock()
	s.trades[trade.VtTradeID()] = trade
	s.updatePositionFromTrade(trade)
	pos := s.positions[trade.Symbol+"."+string(trade.Direction)]
	s.mu.Unlock()
	metrics.RecordTrade(trade.Symbol, string(trade.Direction))
	metrics.SetPositionVolume(trade.Symbol, string(trade.Direction), pos.Volume)
}

func (s *Service) processPosition(evt event.Event) {
	pos, ok := evt.Data.(model.PositionData)
	if !ok {
		return
	}
	s.mu.Lock()
	s.positions[pos.VtPositionID()] = pos
	s.mu.Unlock()
}

func (s *Service) processAccount(evt event.Event) {
	acc, ok := evt.Data.(model.AccountData)
	if !ok {
		return
	}
	s.mu.Lock()
	s.account = &acc
	s.mu.Unlock()
	metrics.SetCashBalance(acc.Balance)
}

// updatePositionFromTrade applies a fill's volume-weighted average price to
// the (symbol, direction) position. Caller must hold s.mu.
func (s *Service) updatePositionFromTrade(trade model.TradeData) {
	posID := trade.Symbol + "." + string(trade.Direction)

	pos, exists := s.positions[posID]
	if !exists {
		pos = model.PositionData{Symbol: trade.Symbol, Direction: trade.Direction}
	}

	oldVolume := pos.Volume
	oldAvg := pos.AvgPrice
	newVolume := oldVolume + trade.Volume

	if newVolume > 0 {
		pos.AvgPrice = (oldAvg*oldVolume + trade.Price*trade.Volume) / newVolume
	} else {
		pos.AvgPrice = 0
	}
	pos.Volume = newVolume

	s.positions[posID] = pos
}

// GetTick returns the last known tick for symbol, if any.
func (s *Service) GetTick(symbol string) (model.TickData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.ticks[symbol]
	return t, ok
}

// GetBar returns the last known bar for symbol, if any.
func (s *Service) GetBar(symbol string) (model.BarData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bars[symbol]
	return b, ok
}

// GetOrder looks up an order by its composite id.
func (s *Service) GetOrder(vtOrderID string) (model.OrderData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[vtOrderID]
	return o, ok
}

// GetAllOrders returns every order ever seen, in no particular order.
func (s *Service) GetAllOrders() []model.OrderData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OrderData, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// GetAllActiveOrders returns every order still eligible for cancellation.
func (s *Service) GetAllActiveOrders() []model.OrderData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OrderData, 0, len(s.activeOrders))
	for _, o := range s.activeOrders {
		out = append(out, o)
	}
	return out
}

// GetTrade looks up a trade by its composite id.
func (s *Service) GetTrade(vtTradeID string) (model.TradeData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[vtTradeID]
	return t, ok
}

// GetAllTrades returns every trade ever recorded.
func (s *Service) GetAllTrades() []model.TradeData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TradeData, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	return out
}

// GetPosition looks up a position by its full "<symbol>.<direction>" id.
func (s *Service) GetPosition(vtPositionID string) (model.PositionData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[vtPositionID]
	return p, ok
}

// GetPositionBySymbol looks up a position by symbol and direction.
func (s *Service) GetPositionBySymbol(symbol string, direction model.Direction) (model.PositionData, bool) {
	return s.GetPosition(symbol + "." + string(direction))
}

// GetAllPositions returns every known position. Positions are never
// removed, and a trade only ever adds volume to the position keyed by its
// own direction.
func (s *Service) GetAllPositions() []model.PositionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PositionData, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// GetAccount returns the last known account snapshot, if any has arrived.
func (s *Service) GetAccount() (model.AccountData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return model.AccountData{}, false
	}
	return *s.account, true
}

// Package gateway defines the adapter contract every exchange connector,
// live or simulated, must satisfy: requests in, events out. Base carries
// the publish side so concrete gateways only implement the operations.
package gateway

import (
	"context"
	"time"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/model"
)

// Gateway is the contract every adapter implements. send_order and
// cancel_order must never return an error synchronously for a trading
// failure — rejections are reported as ORDER(REJECTED) events instead, so
// OMS and strategies never lose track of intent.
type Gateway interface {
	// Connect acquires credentials/session state from setting. Configuration
	// keys are gateway-specific (the Paper Gateway recognizes initial_cash).
	Connect(setting map[string]any) error

	// Subscribe registers interest in market data for symbol. May be a
	// no-op for gateways (like the Paper Gateway) that accept any symbol.
	Subscribe(symbol string) error

	// SendOrder assigns a local order id, publishes ORDER(SUBMITTING)
	// synchronously before returning, and returns the composite vt_orderid.
	// Returns "" only on a rejection path, after publishing
	// ORDER(REJECTED).
	SendOrder(req model.OrderRequest) string

	// CancelOrder is best-effort and always safe to call with an unknown id.
	CancelOrder(req model.CancelRequest)

	// QueryAccount is fire-and-forget; the result arrives via on_account.
	QueryAccount()

	// QueryPosition is fire-and-forget; results arrive via on_position.
	QueryPosition()

	// QueryHistory returns historical bars, or an empty slice if the
	// gateway does not support history (the default behavior).
	QueryHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.BarData, error)

	// Close releases any held resources.
	Close()
}

// Base implements the publish side of the contract (the on_* callbacks)
// so concrete gateways only need to implement the operations above. Embed
// Base and call its On* methods from SendOrder/CancelOrder/etc.
type Base struct {
	Bus  *event.Bus
	Name string
}

// NewBase constructs a Base bound to bus, publishing under gatewayName.
func NewBase(bus *event.Bus, gatewayName string) Base {
	return Base{Bus: bus, Name: gatewayName}
}

// OnTick performs the dual-layer publish for a tick: once under the
// composite type for narrow per-symbol listeners, once under the bare type
// for aggregators such as the OMS.
func (b Base) OnTick(tick model.TickData) {
	b.Bus.Put(event.Event{Type: event.EventTick + tick.Symbol, Data: tick})
	b.Bus.Put(event.Event{Type: event.EventTick, Data: tick})
}

// OnBar is the bar-data analogue of OnTick.
func (b Base) OnBar(bar model.BarData) {
	b.Bus.Put(event.Event{Type: event.EventBar + bar.Symbol, Data: bar})
	b.Bus.Put(event.Event{Type: event.EventBar, Data: bar})
}

// OnOrder snapshots order (value semantics already make OrderData a copy)
// and dual-publishes it so later mutation by the gateway cannot corrupt an
// already-queued event.
func (b Base) OnOrder(order model.OrderData) {
	snapshot := order.Clone()
	b.Bus.Put(event.Event{Type: event.EventOrder + snapshot.VtOrderID(), Data: snapshot})
	b.Bus.Put(event.Event{Type: event.EventOrder, Data: snapshot})
}

// OnTrade dual-publishes a fill record.
func (b Base) OnTrade(trade model.TradeData) {
	b.Bus.Put(event.Event{Type: event.EventTrade + trade.VtTradeID(), Data: trade})
	b.Bus.Put(event.Event{Type: event.EventTrade, Data: trade})
}

// OnPosition publishes a position snapshot under the bare type only — the
// spec does not require a per-position composite channel.
func (b Base) OnPosition(pos model.PositionData) {
	b.Bus.Put(event.Event{Type: event.EventPosition, Data: pos})
}

// OnAccount publishes the singleton account snapshot.
func (b Base) OnAccount(acc model.AccountData) {
	b.Bus.Put(event.Event{Type: event.EventAccount, Data: acc})
}

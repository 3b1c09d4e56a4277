package strategy

import (
	"strings"

	"github.com/aihedge/tradecore/event"
	"github.com/aihedge/tradecore/model"
)

// DefaultPriceAdd is the fractional slippage SignalAdapter applies to limit
// orders when no override is supplied.
const DefaultPriceAdd = 0.001

// SignalDecision is one symbol's entry in a signal map passed to OnSignal,
// e.g. {"action": "buy", "quantity": 0.01, "confidence": 75}.
type SignalDecision struct {
	Action     string
	Quantity   float64
	Confidence float64
}

// decisionFromAny decodes a loosely-typed decision map (as produced by a
// JSON-speaking signal source) into a SignalDecision, defaulting a missing
// action to "hold" and a missing quantity to 0.
func decisionFromAny(raw map[string]any) SignalDecision {
	d := SignalDecision{Action: "hold"}
	if v, ok := raw["action"].(string); ok {
		d.Action = v
	}
	if v, ok := toFloat(raw["quantity"]); ok {
		d.Quantity = v
	}
	if v, ok := toFloat(raw["confidence"]); ok {
		d.Confidence = v
	}
	return d
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// SignalAdapter bridges external decision maps (an LLM portfolio manager,
// a rules engine, anything producing per-symbol buy/sell/short/cover/hold
// calls) into Base's target-position reconciliation. Producers may call
// OnSignal directly or publish the decision map as an EventSignal on the
// bus; the latter serializes signal handling onto the dispatcher goroutine.
type SignalAdapter struct {
	*Base
	PriceAdd float64

	signalHandler event.Handler
}

// NewSignalAdapter constructs a SignalAdapter and subscribes it to
// EventSignal. priceAdd of 0 uses DefaultPriceAdd.
func NewSignalAdapter(base *Base, priceAdd float64) *SignalAdapter {
	if priceAdd == 0 {
		priceAdd = DefaultPriceAdd
	}
	s := &SignalAdapter{Base: base, PriceAdd: priceAdd}
	s.signalHandler = func(evt event.Event) { s.onSignalEvent(evt) }
	base.Bus.Register(event.EventSignal, s.signalHandler)
	return s
}

// NewSignalAdapterFromSetting constructs a SignalAdapter from a setting
// map, assigning each key that matches a declared parameter and silently
// ignoring the rest so forward-compatible setting dicts keep working.
// Recognized keys: "price_add".
func NewSignalAdapterFromSetting(base *Base, setting map[string]any) *SignalAdapter {
	priceAdd := DefaultPriceAdd
	if v, ok := toFloat(setting["price_add"]); ok {
		priceAdd = v
	}
	return NewSignalAdapter(base, priceAdd)
}

// Close unsubscribes the adapter's bus handlers, including Base's.
func (s *SignalAdapter) Close() {
	s.Base.Bus.Unregister(event.EventSignal, s.signalHandler)
	s.Base.Close()
}

func (s *SignalAdapter) onSignalEvent(evt event.Event) {
	signal, ok := evt.Data.(map[string]any)
	if !ok {
		return
	}
	s.OnSignal(signal)
}

// OnInit performs no warm-up; signals arrive on demand via OnSignal.
func (s *SignalAdapter) OnInit() {}

// OnBar is unused; this strategy is signal-driven, not bar-driven.
func (s *SignalAdapter) OnBar(bars map[string]model.BarData) {}

// OnSignal applies the buy/sell/short/cover/hold delta rules to every
// symbol in signal, then executes trading for any symbol that has a bar
// present in the OMS. An empty map is a no-op; if none of the mentioned
// symbols have a bar yet, execution is skipped entirely so the strategy
// can retry on the next signal. Each value in signal is expected to decode
// like {"action": "buy", "quantity": 0.01, "confidence": 75}.
func (s *SignalAdapter) OnSignal(signal map[string]any) {
	if len(signal) == 0 {
		return
	}

	decisions := make(map[string]SignalDecision, len(signal))
	for symbol, raw := range signal {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		decisions[symbol] = decisionFromAny(m)
	}

	for symbol, decision := range decisions {
		currentPos := s.GetPos(symbol)
		action := strings.ToLower(decision.Action)
		if action == "" {
			action = "hold"
		}

		switch action {
		case "buy":
			s.SetTarget(symbol, currentPos+decision.Quantity)
		case "sell":
			target := currentPos - decision.Quantity
			if target < 0 {
				target = 0
			}
			s.SetTarget(symbol, target)
		case "short":
			s.SetTarget(symbol, currentPos-decision.Quantity)
		case "cover":
			s.SetTarget(symbol, currentPos+decision.Quantity)
		case "hold":
			// no change to target
		}
	}

	bars := make(map[string]model.BarData)
	for symbol := range decisions {
		if bar, ok := s.Engine.GetBar(symbol); ok {
			bars[symbol] = bar
		}
	}

	if len(bars) == 0 {
		return
	}

	s.ExecuteTrading(bars, s.PriceAdd)
}

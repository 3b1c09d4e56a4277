package model

import "time"

// BarData is an OHLCV bar for a single interval. Immutable by convention —
// callers must not mutate a BarData after it has been published on the bus.
type BarData struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// TickData is a real-time quote snapshot. Immutable by convention.
type TickData struct {
	Symbol      string
	Timestamp   time.Time
	LastPrice   float64
	BidPrice    float64
	AskPrice    float64
	BidVolume   float64
	AskVolume   float64
	TotalVolume float64
}

// MidPrice returns the (bid+ask)/2 midpoint used by the Paper Gateway to
// mark pending limit orders against tick data.
func (t TickData) MidPrice() float64 {
	return (t.BidPrice + t.AskPrice) / 2.0
}

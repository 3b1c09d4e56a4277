package model

import "time"

// TradeData is a single fill record. One OrderData may produce several
// TradeData records when it is filled in parts. Immutable.
type TradeData struct {
	Symbol    string
	OrderID   string
	TradeID   string
	Direction Direction
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// VtOrderID is the composite id of the order this trade belongs to.
func (t TradeData) VtOrderID() string {
	return t.Symbol + "." + t.OrderID
}

// VtTradeID is this trade's own composite id.
func (t TradeData) VtTradeID() string {
	return t.Symbol + "." + t.TradeID
}

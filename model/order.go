package model

import (
	"fmt"
	"time"
)

// OrderData tracks the lifecycle of a submitted order. Producers must
// publish a snapshot copy (see Clone) on each state transition so that
// events already queued on the bus are not mutated out from under readers.
type OrderData struct {
	Symbol      string
	OrderID     string
	Direction   Direction
	Action      Action
	OrderType   OrderType
	Price       float64
	Volume      float64
	Traded      float64
	Status      Status
	SubmittedAt time.Time
}

// VtOrderID is the composite identifier used to address this order across
// the bus and the OMS: "<symbol>.<orderid>".
func (o OrderData) VtOrderID() string {
	return o.Symbol + "." + o.OrderID
}

// IsActive reports whether the order is still pending or partially filled.
func (o OrderData) IsActive() bool {
	return o.Status.IsActive()
}

// Clone returns a value copy suitable for publishing on the event bus so
// that later in-place mutation of the original does not corrupt the
// already-enqueued snapshot.
func (o OrderData) Clone() OrderData {
	return o
}

// CreateCancelRequest builds the CancelRequest for this order.
func (o OrderData) CreateCancelRequest() CancelRequest {
	return CancelRequest{Symbol: o.Symbol, OrderID: o.OrderID}
}

// OrderRequest is the intent to place an order, sent to a Gateway.
type OrderRequest struct {
	Symbol    string
	Direction Direction
	Action    Action
	OrderType OrderType
	Volume    float64
	Price     float64
	Reference string // originating strategy name, for attribution only
}

// CreateOrderData assigns a gateway-issued order id and returns the initial
// SUBMITTING snapshot for this request.
func (r OrderRequest) CreateOrderData(orderID string) OrderData {
	return OrderData{
		Symbol:      r.Symbol,
		OrderID:     orderID,
		Direction:   r.Direction,
		Action:      r.Action,
		OrderType:   r.OrderType,
		Price:       r.Price,
		Volume:      r.Volume,
		Traded:      0,
		Status:      Submitting,
		SubmittedAt: time.Now(),
	}
}

// CancelRequest is the intent to cancel an existing order.
type CancelRequest struct {
	Symbol  string
	OrderID string
}

// VtOrderID mirrors OrderData.VtOrderID for symmetry in lookups.
func (r CancelRequest) VtOrderID() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.OrderID)
}

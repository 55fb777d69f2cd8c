package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order sides. Anything that is not SideSell is treated as a long position,
// matching the venue's wire convention.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Order represents one resting order in the auction cache together with its
// fill state. Quantity is the original size in lots and never changes;
// WorkingQty is the unfilled remainder and only ever decreases.
type Order struct {
	OrderID    string `json:"order_id"`
	SecurityID string `json:"security_id"`
	Side       string `json:"side"`
	Quantity   uint64 `json:"quantity"`
	WorkingQty uint64 `json:"working_qty"`
	User       string `json:"user"`
	Company    string `json:"company"`
}

// NewOrder builds a fully working (unfilled) order.
func NewOrder(orderID, securityID, side string, qty uint64, user, company string) Order {
	return Order{
		OrderID:    orderID,
		SecurityID: securityID,
		Side:       side,
		Quantity:   qty,
		WorkingQty: qty,
		User:       user,
		Company:    company,
	}
}

// Validate checks the order invariants before insertion.
func (o *Order) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.SecurityID == "" {
		return fmt.Errorf("security id is required")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("invalid side %q", o.Side)
	}
	if o.Quantity == 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if o.WorkingQty > o.Quantity {
		return fmt.Errorf("working quantity %d exceeds order quantity %d", o.WorkingQty, o.Quantity)
	}
	if o.User == "" {
		return fmt.Errorf("user is required")
	}
	if o.Company == "" {
		return fmt.Errorf("company is required")
	}
	return nil
}

// IsBuy reports whether the order rests on the long side.
func (o *Order) IsBuy() bool { return o.Side != SideSell }

// FilledQty returns the number of lots already matched away.
func (o *Order) FilledQty() uint64 { return o.Quantity - o.WorkingQty }

// IsFilled reports whether no working lots remain.
func (o *Order) IsFilled() bool { return o.WorkingQty == 0 }

// Fill removes qty working lots, clamping at zero, and returns the number of
// lots actually removed. WorkingQty is monotonically non-increasing; there is
// deliberately no inverse operation.
func (o *Order) Fill(qty uint64) uint64 {
	if qty >= o.WorkingQty {
		qty = o.WorkingQty
		o.WorkingQty = 0
		return qty
	}
	o.WorkingQty -= qty
	return qty
}

func (o Order) String() string {
	return fmt.Sprintf("order{id: %s, security: %s, side: %s, qty: %d, working: %d, user: %s, company: %s}",
		o.OrderID, o.SecurityID, o.Side, o.Quantity, o.WorkingQty, o.User, o.Company)
}

// OrderFill is one immutable matched-pair event recorded by the matcher when
// the match log is enabled. Records are append-only and never mutated.
type OrderFill struct {
	ID          uuid.UUID `json:"id"`
	SecurityID  string    `json:"security_id"`
	BuyOrderID  string    `json:"buy_order_id"`
	SellOrderID string    `json:"sell_order_id"`
	Qty         uint64    `json:"qty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// NewOrderFill records a single pair-event between a buy and a sell order.
func NewOrderFill(securityID, buyOrderID, sellOrderID string, qty uint64) OrderFill {
	return OrderFill{
		ID:          uuid.New(),
		SecurityID:  securityID,
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		Qty:         qty,
		ExecutedAt:  time.Now().UTC(),
	}
}

func (f OrderFill) String() string {
	return fmt.Sprintf("fill{buy: %s, sell: %s, qty: %d}", f.BuyOrderID, f.SellOrderID, f.Qty)
}

package checkout

import (
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/internal/cart"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

var ErrEmptyCart = pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")

// LineItem is one sold line as handed to the transaction sink. UnitType carries
// the name of the unit sold so the sink can convert back to base units.
type LineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitType  string          `json:"unit_type"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// TransactionPayload is the sale submitted to the sink. Total equals Subtotal;
// fees, tax and discounts are composed elsewhere.
type TransactionPayload struct {
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Notes         *string         `json:"notes,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	CashierID     string          `json:"cashier_id,omitempty"`
}

// Lines is the read side of a cart that BuildPayload needs.
type Lines interface {
	Lines() iter.Seq[cart.LineView]
}

// BuildPayload maps the cart lines, in order, into a transaction payload.
// An empty cart is rejected with ErrEmptyCart.
func BuildPayload(c Lines, paymentMethod string, notes *string) (TransactionPayload, error) {
	payload := TransactionPayload{
		Items:         make([]LineItem, 0),
		Subtotal:      decimal.Zero,
		PaymentMethod: paymentMethod,
	}
	for lv := range c.Lines() {
		payload.Items = append(payload.Items, LineItem{
			ProductID: lv.ProductID,
			Quantity:  lv.Quantity,
			UnitPrice: lv.UnitPrice,
			UnitType:  lv.UnitName,
			Subtotal:  lv.Subtotal,
		})
		payload.Subtotal = payload.Subtotal.Add(lv.Subtotal)
	}
	if len(payload.Items) == 0 {
		return TransactionPayload{}, ErrEmptyCart
	}
	payload.Total = payload.Subtotal
	if notes != nil && *notes != "" {
		n := *notes
		payload.Notes = &n
	}
	return payload, nil
}

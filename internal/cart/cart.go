package cart

import (
	"fmt"
	"iter"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/internal/pricing"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

var (
	ErrUnknownProduct     = pkgerrors.New(pkgerrors.CodeUnknownProduct, "product not in loaded catalog")
	ErrInvalidQuantity    = pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be a finite number")
	ErrCheckoutInProgress = pkgerrors.New(pkgerrors.CodeCheckoutInProgress, "checkout in progress")
)

// Catalog is the product source a cart prices against.
type Catalog interface {
	Lookup(id uuid.UUID) (catalog.Product, bool)
}

// Key identifies a cart line. The same product sold in two units makes two lines.
type Key struct {
	ProductID uuid.UUID
	UnitName  string
}

type line struct {
	productName string
	unitType    enums.UnitType
	unitPrice   decimal.Decimal
	quantity    decimal.Decimal
}

// LineView is a read-only copy of a cart line with its subtotal computed at read time.
type LineView struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitName    string          `json:"unit_name"`
	UnitType    enums.UnitType  `json:"unit_type"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Totals are always derived from the current lines.
type Totals struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalQuantity     decimal.Decimal `json:"total_quantity"`
	DistinctLineCount int             `json:"distinct_line_count"`
}

// Cart is the working set of one POS session. It is not safe for concurrent
// use; the owning session serializes access.
type Cart struct {
	catalog Catalog
	lines   map[Key]*line
	order   []Key
	pending bool
}

func New(c Catalog) *Cart {
	return &Cart{
		catalog: c,
		lines:   make(map[Key]*line),
	}
}

// AddToCart adds one of the resolved unit, creating the line at quantity 1.
func (c *Cart) AddToCart(productID uuid.UUID, unitName string) error {
	return c.UpdateQuantityDecimal(productID, unitName, decimal.NewFromInt(1))
}

// UpdateQuantity adds delta (negative or fractional allowed) to the line.
// A result <= 0 removes the line.
func (c *Cart) UpdateQuantity(productID uuid.UUID, unitName string, delta float64) error {
	d, err := fromFloat(delta)
	if err != nil {
		return err
	}
	return c.UpdateQuantityDecimal(productID, unitName, d)
}

// SetQuantity replaces the line quantity. A value <= 0 removes the line.
func (c *Cart) SetQuantity(productID uuid.UUID, unitName string, quantity float64) error {
	q, err := fromFloat(quantity)
	if err != nil {
		return err
	}
	return c.SetQuantityDecimal(productID, unitName, q)
}

func (c *Cart) UpdateQuantityDecimal(productID uuid.UUID, unitName string, delta decimal.Decimal) error {
	return c.mutate(productID, unitName, func(current decimal.Decimal) decimal.Decimal {
		return current.Add(delta)
	})
}

func (c *Cart) SetQuantityDecimal(productID uuid.UUID, unitName string, quantity decimal.Decimal) error {
	return c.mutate(productID, unitName, func(decimal.Decimal) decimal.Decimal {
		return quantity
	})
}

// RemoveLine drops the line whatever its quantity. It reports whether a line was removed.
func (c *Cart) RemoveLine(productID uuid.UUID, unitName string) (bool, error) {
	if c.pending {
		return false, ErrCheckoutInProgress
	}
	key := c.key(productID, unitName)
	if _, ok := c.lines[key]; !ok {
		return false, nil
	}
	c.remove(key)
	return true, nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	clear(c.lines)
	c.order = c.order[:0]
}

// Lines yields every line in the order it was first added. Each pass reads the
// cart afresh, so the sequence can be ranged over any number of times.
func (c *Cart) Lines() iter.Seq[LineView] {
	return func(yield func(LineView) bool) {
		keys := append([]Key(nil), c.order...)
		for _, k := range keys {
			l, ok := c.lines[k]
			if !ok {
				continue
			}
			if !yield(view(k, l)) {
				return
			}
		}
	}
}

// Line returns the view of a single line. unitName resolves the same way as
// in AddToCart, so an unknown unit finds the base-unit line.
func (c *Cart) Line(productID uuid.UUID, unitName string) (LineView, bool) {
	k := c.key(productID, unitName)
	l, ok := c.lines[k]
	if !ok {
		return LineView{}, false
	}
	return view(k, l), true
}

func (c *Cart) Totals() Totals {
	t := Totals{TotalAmount: decimal.Zero, TotalQuantity: decimal.Zero}
	for lv := range c.Lines() {
		t.TotalAmount = t.TotalAmount.Add(lv.Subtotal)
		t.TotalQuantity = t.TotalQuantity.Add(lv.Quantity)
		t.DistinctLineCount++
	}
	return t
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// BeginCheckout freezes the cart until EndCheckout. It fails if a checkout is already pending.
func (c *Cart) BeginCheckout() error {
	if c.pending {
		return ErrCheckoutInProgress
	}
	c.pending = true
	return nil
}

func (c *Cart) EndCheckout() {
	c.pending = false
}

func (c *Cart) CheckoutPending() bool {
	return c.pending
}

func (c *Cart) mutate(productID uuid.UUID, unitName string, next func(decimal.Decimal) decimal.Decimal) error {
	if c.pending {
		return ErrCheckoutInProgress
	}
	p, ok := c.catalog.Lookup(productID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnknownProduct, fmt.Sprintf("product %s is not in the loaded catalog", productID)).
			WithDetails(map[string]any{"product_id": productID.String()})
	}

	unit := catalog.ResolveUnit(p, unitName)
	price := pricing.ComputePrice(catalog.BaseUnit(p), unit)
	key := Key{ProductID: p.ID, UnitName: unit.Name}

	current := decimal.Zero
	existing, present := c.lines[key]
	if present {
		current = existing.quantity
	}

	qty := next(current)
	if !qty.IsPositive() {
		if present {
			c.remove(key)
		}
		return nil
	}

	if !present {
		existing = &line{}
		c.lines[key] = existing
		c.order = append(c.order, key)
	}
	existing.productName = p.Name
	existing.unitType = unit.Type
	existing.unitPrice = price
	existing.quantity = qty
	return nil
}

// key resolves unitName against the loaded catalog. Products missing from the
// catalog keep the raw name.
func (c *Cart) key(productID uuid.UUID, unitName string) Key {
	k := Key{ProductID: productID, UnitName: unitName}
	if p, ok := c.catalog.Lookup(productID); ok {
		k.UnitName = catalog.ResolveUnit(p, unitName).Name
	}
	return k
}

func (c *Cart) remove(key Key) {
	delete(c.lines, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func view(k Key, l *line) LineView {
	return LineView{
		ProductID:   k.ProductID,
		ProductName: l.productName,
		UnitName:    k.UnitName,
		UnitType:    l.unitType,
		UnitPrice:   l.unitPrice,
		Quantity:    l.quantity,
		Subtotal:    l.unitPrice.Mul(l.quantity),
	}
}

func fromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("quantity %v is not a finite number", v))
	}
	return decimal.NewFromFloat(v), nil
}

package enums

// StockMovementReason records why a product's stock changed.
type StockMovementReason string

const (
	StockMovementSale       StockMovementReason = "sale"
	StockMovementRestock    StockMovementReason = "restock"
	StockMovementAdjustment StockMovementReason = "adjustment"
)

// String implements fmt.Stringer.
func (r StockMovementReason) String() string {
	return string(r)
}

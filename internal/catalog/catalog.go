package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

var one = decimal.NewFromInt(1)

// Unit is one sellable measure of a product. One unit equals ConversionFactor base units.
type Unit struct {
	Name             string          `json:"name" validate:"required,max=64"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Price            decimal.Decimal `json:"price"`
	IsBase           bool            `json:"is_base"`
	Type             enums.UnitType  `json:"type" validate:"required,oneof=retail wholesale"`
	IsAutoPricing    bool            `json:"is_auto_pricing"`
}

// Product is the read-only catalog view the cart prices against.
type Product struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	SKU      string    `json:"sku"`
	Name     string    `json:"name" validate:"required,max=200"`
	Stock    int       `json:"stock" validate:"gte=0"`
	Category string    `json:"category"`
	BaseUnit string    `json:"base_unit" validate:"required"`
	Units    []Unit    `json:"units" validate:"required,min=1,dive"`
}

// Clone returns a copy whose unit slice can be edited without touching p.
func (p Product) Clone() Product {
	out := p
	out.Units = append([]Unit(nil), p.Units...)
	return out
}

// UnitIndex returns the position of the named unit, or -1.
func (p Product) UnitIndex(name string) int {
	for i := range p.Units {
		if p.Units[i].Name == name {
			return i
		}
	}
	return -1
}

// ResolveUnit returns the unit called unitName. An unknown name falls back to the
// product's base unit (see BaseUnit), so an unrecognized keyboard entry still
// sells the base measure instead of failing the sale.
func ResolveUnit(p Product, unitName string) Unit {
	if i := p.UnitIndex(unitName); i >= 0 {
		return p.Units[i]
	}
	return BaseUnit(p)
}

// BaseUnit returns the first unit flagged IsBase, else the first unit listed.
// A product without units yields a synthetic zero-priced unit named after
// p.BaseUnit; ingestion validation keeps such products out of a live catalog.
func BaseUnit(p Product) Unit {
	for _, u := range p.Units {
		if u.IsBase {
			return u
		}
	}
	if len(p.Units) > 0 {
		return p.Units[0]
	}
	return Unit{
		Name:             p.BaseUnit,
		ConversionFactor: one,
		Price:            decimal.Zero,
		IsBase:           true,
		Type:             enums.UnitTypeRetail,
	}
}

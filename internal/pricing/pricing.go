package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

// ComputePrice returns the selling price of target. Auto-priced units cost
// base.Price × target.ConversionFactor; all others keep their manual price.
// Inputs are trusted: a non-positive factor yields a zero or negative price.
func ComputePrice(base, target catalog.Unit) decimal.Decimal {
	if target.IsAutoPricing {
		return base.Price.Mul(target.ConversionFactor)
	}
	return target.Price
}

// Reprice returns a copy of p with every auto-priced unit recomputed from the base unit.
func Reprice(p catalog.Product) catalog.Product {
	out := p.Clone()
	base := catalog.BaseUnit(out)
	for i := range out.Units {
		u := &out.Units[i]
		if u.Name == base.Name || !u.IsAutoPricing {
			continue
		}
		u.Price = ComputePrice(base, *u)
	}
	return out
}

// SetBasePrice changes the base unit price and propagates it to auto-priced units.
func SetBasePrice(p catalog.Product, price decimal.Decimal) (catalog.Product, error) {
	if price.IsNegative() {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	out := p.Clone()
	i := out.UnitIndex(catalog.BaseUnit(out).Name)
	if i < 0 {
		return p, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %q has no units", p.Name))
	}
	out.Units[i].Price = price
	return Reprice(out), nil
}

// SetConversionFactor changes how many base units one unitName holds.
func SetConversionFactor(p catalog.Product, unitName string, factor decimal.Decimal) (catalog.Product, error) {
	if !factor.IsPositive() {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "conversion factor must be > 0")
	}
	out := p.Clone()
	i, err := editableUnit(out, unitName)
	if err != nil {
		return p, err
	}
	out.Units[i].ConversionFactor = factor
	return Reprice(out), nil
}

// SetAutoPricing toggles auto-pricing on unitName. Turning it on recomputes the
// price right away; turning it off keeps the last computed price as the manual one.
func SetAutoPricing(p catalog.Product, unitName string, enabled bool) (catalog.Product, error) {
	out := p.Clone()
	i, err := editableUnit(out, unitName)
	if err != nil {
		return p, err
	}
	out.Units[i].IsAutoPricing = enabled
	return Reprice(out), nil
}

// SetManualPrice sets the price of a unit that is not auto-priced.
func SetManualPrice(p catalog.Product, unitName string, price decimal.Decimal) (catalog.Product, error) {
	if price.IsNegative() {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	out := p.Clone()
	i := out.UnitIndex(unitName)
	if i < 0 {
		return p, unknownUnit(p, unitName)
	}
	if out.Units[i].IsAutoPricing {
		return p, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("unit %q is auto-priced; disable auto-pricing first", unitName))
	}
	if out.Units[i].Name == catalog.BaseUnit(out).Name {
		return SetBasePrice(p, price)
	}
	out.Units[i].Price = price
	return Reprice(out), nil
}

func editableUnit(p catalog.Product, unitName string) (int, error) {
	i := p.UnitIndex(unitName)
	if i < 0 {
		return -1, unknownUnit(p, unitName)
	}
	if p.Units[i].Name == catalog.BaseUnit(p).Name {
		return -1, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unit %q is the base unit", unitName))
	}
	return i, nil
}

func unknownUnit(p catalog.Product, unitName string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q has no unit %q", p.Name, unitName))
}

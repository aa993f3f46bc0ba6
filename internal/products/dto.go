package product

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

// UnitInput describes a unit on product creation.
type UnitInput struct {
	Name             string          `json:"name" validate:"required,max=64"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Price            decimal.Decimal `json:"price"`
	IsBase           bool            `json:"is_base"`
	Type             enums.UnitType  `json:"type" validate:"required,oneof=retail wholesale"`
	IsAutoPricing    bool            `json:"is_auto_pricing"`
}

// CreateProductInput is the payload for adding a product to the catalog.
type CreateProductInput struct {
	SKU      string      `json:"sku" validate:"required,max=64"`
	Name     string      `json:"name" validate:"required,max=200"`
	Category string      `json:"category" validate:"required,max=100"`
	BaseUnit string      `json:"base_unit" validate:"required,max=64"`
	Stock    int         `json:"stock" validate:"gte=0"`
	Units    []UnitInput `json:"units" validate:"required,min=1,dive"`
}

// UnitPricingEdit changes one unit. Nil fields are left alone.
type UnitPricingEdit struct {
	Name             string           `json:"name" validate:"required"`
	ConversionFactor *decimal.Decimal `json:"conversion_factor,omitempty"`
	IsAutoPricing    *bool            `json:"is_auto_pricing,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
}

// PricingInput edits a product's prices. The base price is applied first, then
// each unit edit in order.
type PricingInput struct {
	BasePrice *decimal.Decimal  `json:"base_price,omitempty"`
	Units     []UnitPricingEdit `json:"units" validate:"dive"`
}

// ToCatalog maps a stored product to the catalog view the cart prices against.
func ToCatalog(m models.Product) catalog.Product {
	units := make([]catalog.Unit, 0, len(m.Units))
	for _, u := range m.Units {
		units = append(units, catalog.Unit{
			Name:             u.Name,
			ConversionFactor: u.ConversionFactor,
			Price:            u.Price,
			IsBase:           u.IsBase,
			Type:             u.Type,
			IsAutoPricing:    u.IsAutoPricing,
		})
	}
	return catalog.Product{
		ID:       m.ID,
		SKU:      m.SKU,
		Name:     m.Name,
		Stock:    m.Stock,
		Category: m.Category,
		BaseUnit: m.BaseUnit,
		Units:    units,
	}
}

func unitModels(p catalog.Product) []models.ProductUnit {
	out := make([]models.ProductUnit, 0, len(p.Units))
	for i, u := range p.Units {
		out = append(out, models.ProductUnit{
			ProductID:        p.ID,
			Name:             u.Name,
			ConversionFactor: u.ConversionFactor,
			Price:            u.Price,
			IsBase:           u.IsBase,
			Type:             u.Type,
			IsAutoPricing:    u.IsAutoPricing,
			Position:         i,
		})
	}
	return out
}

func (in CreateProductInput) toCatalog() catalog.Product {
	units := make([]catalog.Unit, 0, len(in.Units))
	for _, u := range in.Units {
		units = append(units, catalog.Unit{
			Name:             u.Name,
			ConversionFactor: u.ConversionFactor,
			Price:            u.Price,
			IsBase:           u.IsBase,
			Type:             u.Type,
			IsAutoPricing:    u.IsAutoPricing,
		})
	}
	return catalog.Product{
		SKU:      in.SKU,
		Name:     in.Name,
		Category: in.Category,
		BaseUnit: in.BaseUnit,
		Stock:    in.Stock,
		Units:    units,
	}
}

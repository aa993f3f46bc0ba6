package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

// ProductUnit is one sellable measure of a product ("piece", "pack", "kilo").
// Position keeps the unit order the catalog editor saved.
type ProductUnit struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_units_product_name"`
	Name             string          `gorm:"column:name;not null;uniqueIndex:idx_product_units_product_name"`
	ConversionFactor decimal.Decimal `gorm:"column:conversion_factor;type:numeric(12,4);not null"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsBase           bool            `gorm:"column:is_base;not null;default:false"`
	Type             enums.UnitType  `gorm:"column:type;not null;default:'retail'"`
	IsAutoPricing    bool            `gorm:"column:is_auto_pricing;not null;default:false"`
	Position         int             `gorm:"column:position;not null;default:0"`
}

func (u *ProductUnit) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

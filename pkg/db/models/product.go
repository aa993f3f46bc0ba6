package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry. Stock is counted in the product's base unit.
type Product struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string        `gorm:"column:sku;not null;uniqueIndex"`
	Name      string        `gorm:"column:name;not null"`
	Category  string        `gorm:"column:category;not null"`
	BaseUnit  string        `gorm:"column:base_unit;not null"`
	Stock     int           `gorm:"column:stock;not null;default:0"`
	IsActive  bool          `gorm:"column:is_active;not null"`
	Units     []ProductUnit `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

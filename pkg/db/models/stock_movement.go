package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

// StockMovement is an append-only record of every stock change, in base units.
type StockMovement struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	Delta         int                       `gorm:"column:delta;not null"`
	Reason        enums.StockMovementReason `gorm:"column:reason;not null"`
	TransactionID *uuid.UUID                `gorm:"column:transaction_id;type:uuid"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

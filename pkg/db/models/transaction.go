package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

// Transaction is a completed sale as recorded by the transaction sink.
type Transaction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SessionID     string              `gorm:"column:session_id;not null;index"`
	CashierID     string              `gorm:"column:cashier_id;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Notes         *string             `gorm:"column:notes"`
	Items         []TransactionItem   `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TransactionItem is one line of a sale. UnitType holds the unit name the line was sold in.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	UnitType      string          `gorm:"column:unit_type;not null"`
	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Position      int             `gorm:"column:position;not null;default:0"`
}

func (i *TransactionItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

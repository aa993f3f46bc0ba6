package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
)

type transactionItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitType  string          `json:"unit_type"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type transactionView struct {
	ID            uuid.UUID             `json:"id"`
	SessionID     string                `json:"session_id"`
	CashierID     string                `json:"cashier_id"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Total         decimal.Decimal       `json:"total"`
	PaymentMethod enums.PaymentMethod   `json:"payment_method"`
	Notes         *string               `json:"notes,omitempty"`
	Items         []transactionItemView `json:"items,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

type transactionPage struct {
	Items      []transactionView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type stockMovementView struct {
	ID            uuid.UUID                 `json:"id"`
	Delta         int                       `json:"delta"`
	Reason        enums.StockMovementReason `json:"reason"`
	TransactionID *uuid.UUID                `json:"transaction_id,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func newTransactionView(t models.Transaction) transactionView {
	view := transactionView{
		ID:            t.ID,
		SessionID:     t.SessionID,
		CashierID:     t.CashierID,
		Subtotal:      t.Subtotal,
		Total:         t.Total,
		PaymentMethod: t.PaymentMethod,
		Notes:         t.Notes,
		CreatedAt:     t.CreatedAt,
	}
	for _, item := range t.Items {
		view.Items = append(view.Items, transactionItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			UnitType:  item.UnitType,
			Subtotal:  item.Subtotal,
		})
	}
	return view
}

func newStockMovementViews(rows []models.StockMovement) []stockMovementView {
	out := make([]stockMovementView, 0, len(rows))
	for _, m := range rows {
		out = append(out, stockMovementView{
			ID:            m.ID,
			Delta:         m.Delta,
			Reason:        m.Reason,
			TransactionID: m.TransactionID,
			CreatedAt:     m.CreatedAt,
		})
	}
	return out
}

package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

var ErrInsufficientStock = pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")

// Adjustment removes Quantity base units of a product.
type Adjustment struct {
	ProductID uuid.UUID
	Quantity  int
}

// BaseQuantity converts a sold quantity into whole base units, rounding up so
// that a fractional sale never leaves phantom stock behind.
func BaseQuantity(quantity, conversionFactor decimal.Decimal) int {
	return int(quantity.Mul(conversionFactor).Ceil().IntPart())
}

// Gateway applies stock changes and keeps the movement ledger.
type Gateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// Decrement removes stock for a sale inside the caller's transaction. On error
// the caller must roll tx back; earlier products may already be decremented.
func (g *Gateway) Decrement(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, adjustments []Adjustment) error {
	if tx == nil {
		tx = g.db
	}
	merged := merge(adjustments)
	for _, adj := range merged {
		if adj.Quantity <= 0 {
			continue
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", adj.ProductID, adj.Quantity).
			Update("stock", gorm.Expr("stock - ?", adj.Quantity))
		if res.Error != nil {
			return fmt.Errorf("decrement stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for product %s", adj.ProductID)).
				WithDetails(map[string]any{"product_id": adj.ProductID.String(), "requested": adj.Quantity})
		}
		txID := transactionID
		if err := record(ctx, tx, adj.ProductID, -adj.Quantity, enums.StockMovementSale, &txID); err != nil {
			return err
		}
	}
	return nil
}

// Restock adds quantity base units and returns the new stock level.
func (g *Gateway) Restock(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be > 0")
	}
	var stock int
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			Update("stock", gorm.Expr("stock + ?", quantity))
		if res.Error != nil {
			return fmt.Errorf("restock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := record(ctx, tx, productID, quantity, enums.StockMovementRestock, nil); err != nil {
			return err
		}
		return tx.Model(&models.Product{}).Where("id = ?", productID).Select("stock").Scan(&stock).Error
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// Movements lists the most recent stock movements of a product, newest first.
func (g *Gateway) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.StockMovement
	err := g.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return rows, nil
}

// IsInsufficient reports whether err is a stock shortage.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

func record(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int, reason enums.StockMovementReason, transactionID *uuid.UUID) error {
	movement := &models.StockMovement{
		ProductID:     productID,
		Delta:         delta,
		Reason:        reason,
		TransactionID: transactionID,
	}
	if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	return nil
}

// merge folds adjustments for the same product, keeping first-seen order.
func merge(adjustments []Adjustment) []Adjustment {
	index := make(map[uuid.UUID]int, len(adjustments))
	out := make([]Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		if i, ok := index[adj.ProductID]; ok {
			out[i].Quantity += adj.Quantity
			continue
		}
		index[adj.ProductID] = len(out)
		out = append(out, adj)
	}
	return out
}

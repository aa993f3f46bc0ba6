package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/pagination"
)

// ListFilter narrows the sales history.
type ListFilter struct {
	SessionID     string
	CashierID     string
	PaymentMethod enums.PaymentMethod
	From          *time.Time
	To            *time.Time
	Page          pagination.Params
}

// ListResult is one page of transactions, newest first.
type ListResult struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// MethodTotals aggregates one payment method over a day.
type MethodTotals struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Count         int64               `json:"count"`
	Gross         decimal.Decimal     `json:"gross"`
}

// DailySummary aggregates the sales of one calendar day.
type DailySummary struct {
	Day      string          `json:"day"`
	Count    int64           `json:"count"`
	Gross    decimal.Decimal `json:"gross"`
	ByMethod []MethodTotals  `json:"by_method"`
}

// Repository reads and writes recorded sales.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the transaction with its items.
func (r *Repository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// Get loads one transaction with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).Preload("Items", orderedItems).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get transaction")
	}
	return &row, nil
}

// List pages through transactions ordered by (created_at, id) descending.
func (r *Repository) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(filter.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Preload("Items", orderedItems)
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.CashierID != "" {
		q = q.Where("cashier_id = ?", filter.CashierID)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Transaction
	err = q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Page.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	items, next := pagination.Trim(rows, filter.Page.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &ListResult{Items: items, NextCursor: next}, nil
}

type methodRow struct {
	PaymentMethod string
	Count         int64
	Gross         decimal.NullDecimal
}

// DailySummary totals the sales recorded on day, in day's location.
func (r *Repository) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var rows []methodRow
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("payment_method, COUNT(*) AS count, SUM(total) AS gross").
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Group("payment_method").
		Order("payment_method ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}

	summary := &DailySummary{
		Day:      start.Format(time.DateOnly),
		Gross:    decimal.Zero,
		ByMethod: make([]MethodTotals, 0, len(rows)),
	}
	for _, row := range rows {
		gross := decimal.Zero
		if row.Gross.Valid {
			gross = row.Gross.Decimal
		}
		summary.Count += row.Count
		summary.Gross = summary.Gross.Add(gross)
		summary.ByMethod = append(summary.ByMethod, MethodTotals{
			PaymentMethod: enums.PaymentMethod(row.PaymentMethod),
			Count:         row.Count,
			Gross:         gross,
		})
	}
	return summary, nil
}

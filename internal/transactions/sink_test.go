package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/internal/cart"
	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	product "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/internal/stock"
	"github.com/angelmondragon/agrivet-pos/pkg/db"
	"github.com/angelmondragon/agrivet-pos/pkg/db/dbtest"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/pagination"
)

type fixture struct {
	conn     *gorm.DB
	repo     *Repository
	products *product.Repository
	sink     *Sink
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	products := product.NewRepository(conn)
	sink, err := NewSink(db.NewFromConn(conn), repo, products, stock.NewGateway(conn), BreakerSettings{}, nil)
	require.NoError(t, err)
	return &fixture{conn: conn, repo: repo, products: products, sink: sink}
}

// seedVitamins stores piece (15) and an auto-priced pack of 6 (90).
func (f *fixture) seedVitamins(t *testing.T, stockLevel int) catalog.Product {
	t.Helper()
	row := &models.Product{
		SKU: "VIT-" + uuid.NewString()[:6], Name: "Vitamin B12", Category: "vet",
		BaseUnit: "piece", Stock: stockLevel, IsActive: true,
		Units: []models.ProductUnit{
			{Name: "piece", ConversionFactor: dec("1"), Price: dec("15"), IsBase: true, Type: enums.UnitTypeRetail},
			{Name: "pack", ConversionFactor: dec("6"), Price: dec("90"), Type: enums.UnitTypeWholesale, IsAutoPricing: true, Position: 1},
		},
	}
	require.NoError(t, f.conn.Create(row).Error)
	return product.ToCatalog(*row)
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func payloadFor(t *testing.T, p catalog.Product, lines map[string]string) checkout.TransactionPayload {
	t.Helper()
	c := cart.New(catalog.NewSnapshot([]catalog.Product{p}))
	for _, unit := range []string{"piece", "pack"} {
		qty, ok := lines[unit]
		if !ok {
			continue
		}
		require.NoError(t, c.SetQuantityDecimal(p.ID, unit, dec(qty)))
	}
	payload, err := checkout.BuildPayload(c, "cash", nil)
	require.NoError(t, err)
	payload.SessionID = "till-1"
	payload.CashierID = "cashier-7"
	return payload
}

func TestSinkRecordsSaleAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedVitamins(t, 30)

	payload := payloadFor(t, p, map[string]string{"piece": "1.5", "pack": "2"})
	res, err := f.sink.Submit(ctx, payload)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	require.NotEmpty(t, res.TransactionID)

	// 2 packs x 6 + ceil(1.5 pieces)
	assert.Equal(t, 30-12-2, f.stockOf(t, p.ID))

	id := uuid.MustParse(res.TransactionID)
	stored, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "till-1", stored.SessionID)
	assert.Equal(t, enums.PaymentMethodCash, stored.PaymentMethod)
	assert.True(t, dec("202.5").Equal(stored.Total), "total %s", stored.Total)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "piece", stored.Items[0].UnitType)
	assert.Equal(t, "pack", stored.Items[1].UnitType)
	assert.True(t, dec("90").Equal(stored.Items[1].UnitPrice))
}

func TestSinkRejectsShortageWithoutError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedVitamins(t, 10)

	res, err := f.sink.Submit(ctx, payloadFor(t, p, map[string]string{"pack": "2"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "insufficient stock")

	assert.Equal(t, 10, f.stockOf(t, p.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, "closed", f.sink.BreakerState())
}

func TestSinkRejectsRemovedUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedVitamins(t, 50)
	payload := payloadFor(t, p, map[string]string{"pack": "1"})

	require.NoError(t, f.products.ReplaceUnits(ctx, p.ID, []models.ProductUnit{
		{Name: "piece", ConversionFactor: dec("1"), Price: dec("15"), IsBase: true, Type: enums.UnitTypeRetail},
	}))

	res, err := f.sink.Submit(ctx, payload)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "pack")
	assert.Equal(t, 50, f.stockOf(t, p.ID))
}

type failingRunner struct {
	calls int
}

func (r *failingRunner) WithTx(context.Context, func(tx *gorm.DB) error) error {
	r.calls++
	return errors.New("connection refused")
}

func TestSinkBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	conn := dbtest.Open(t)
	runner := &failingRunner{}
	sink, err := NewSink(runner, NewRepository(conn), product.NewRepository(conn), stock.NewGateway(conn),
		BreakerSettings{MaxFailures: 2, OpenInterval: time.Minute}, nil)
	require.NoError(t, err)

	payload := checkout.TransactionPayload{PaymentMethod: "cash"}
	for i := 0; i < 2; i++ {
		_, err := sink.Submit(context.Background(), payload)
		require.Error(t, err)
		assert.False(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	}
	assert.Equal(t, "open", sink.BreakerState())

	_, err = sink.Submit(context.Background(), payload)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 2, runner.calls)
}

func TestCheckoutThroughSink(t *testing.T) {
	f := newFixture(t)
	p := f.seedVitamins(t, 100)

	svc, err := checkout.NewService(f.sink, checkout.Options{SinkTimeout: 5 * time.Second})
	require.NoError(t, err)

	c := cart.New(catalog.NewSnapshot([]catalog.Product{p}))
	require.NoError(t, c.AddToCart(p.ID, "pack"))
	require.NoError(t, c.AddToCart(p.ID, "piece"))

	res, err := svc.Checkout(context.Background(), c, checkout.Request{PaymentMethod: "gcash", SessionID: "till-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransactionID)
	assert.Zero(t, c.Len())
	assert.Equal(t, 93, f.stockOf(t, p.ID))
}

func TestListPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.repo.Create(ctx, &models.Transaction{
			SessionID: "till-1", CashierID: "c", PaymentMethod: enums.PaymentMethodCash,
			Subtotal: dec("10"), Total: dec("10"), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	first, err := f.repo.List(ctx, ListFilter{Page: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))
	require.NotEmpty(t, first.NextCursor)

	second, err := f.repo.List(ctx, ListFilter{Page: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.True(t, second.Items[0].CreatedAt.Equal(base))

	none, err := f.repo.List(ctx, ListFilter{CashierID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []struct {
		method enums.PaymentMethod
		total  string
		at     time.Time
	}{
		{enums.PaymentMethodCash, "90", day.Add(8 * time.Hour)},
		{enums.PaymentMethodCash, "57.5", day.Add(12 * time.Hour)},
		{enums.PaymentMethodGCash, "120", day.Add(15 * time.Hour)},
		{enums.PaymentMethodCash, "999", day.Add(25 * time.Hour)},
	}
	for _, r := range rows {
		require.NoError(t, f.repo.Create(ctx, &models.Transaction{
			SessionID: "till-1", CashierID: "c", PaymentMethod: r.method,
			Subtotal: dec(r.total), Total: dec(r.total), CreatedAt: r.at,
		}))
	}

	summary, err := f.repo.DailySummary(ctx, day.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01", summary.Day)
	assert.Equal(t, int64(3), summary.Count)
	assert.True(t, dec("267.5").Equal(summary.Gross), "gross %s", summary.Gross)
	require.Len(t, summary.ByMethod, 2)
	assert.Equal(t, enums.PaymentMethodCash, summary.ByMethod[0].PaymentMethod)
	assert.Equal(t, int64(2), summary.ByMethod[0].Count)
	assert.True(t, dec("147.5").Equal(summary.ByMethod[0].Gross))

	empty, err := f.repo.DailySummary(ctx, day.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Gross.IsZero())
}

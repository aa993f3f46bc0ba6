package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/pkg/db"
	"github.com/angelmondragon/agrivet-pos/pkg/db/dbtest"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

type recordingPublisher struct {
	put     []catalog.Product
	removed []uuid.UUID
}

func (r *recordingPublisher) Put(p catalog.Product) error {
	r.put = append(r.put, p)
	return nil
}

func (r *recordingPublisher) Remove(id uuid.UUID) {
	r.removed = append(r.removed, id)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func boolPtr(b bool) *bool { return &b }

func newTestService(t *testing.T) (Service, *Repository, *recordingPublisher) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	pub := &recordingPublisher{}
	svc, err := NewService(repo, db.NewFromConn(conn), pub, nil)
	require.NoError(t, err)
	return svc, repo, pub
}

func vitaminsInput() CreateProductInput {
	return CreateProductInput{
		SKU:      "VIT-B12",
		Name:     "Vitamin B12 injectable",
		Category: "vet",
		BaseUnit: "piece",
		Stock:    120,
		Units: []UnitInput{
			{Name: "piece", ConversionFactor: dec("1"), Price: dec("15"), IsBase: true, Type: enums.UnitTypeRetail},
			{Name: "pack", ConversionFactor: dec("6"), Type: enums.UnitTypeWholesale, IsAutoPricing: true},
		},
	}
}

func TestCreateRepricesAndPublishes(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)
	assert.True(t, view.IsActive)
	require.Len(t, view.Units, 2)
	assert.True(t, dec("90").Equal(view.Units[1].Price), "pack price %s", view.Units[1].Price)

	require.Len(t, pub.put, 1)
	assert.Equal(t, view.ID, pub.put[0].ID)

	got, err := svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "piece", got.Units[0].Name)
	assert.Equal(t, "pack", got.Units[1].Name)
	assert.True(t, dec("90").Equal(got.Units[1].Price))
}

func TestCreateRejectsInvalidAndDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bad := vitaminsInput()
	bad.Units[1].ConversionFactor = dec("0")
	_, err := svc.Create(ctx, bad)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, vitaminsInput())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestUpdatePricingPersistsAndPropagates(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)

	updated, err := svc.UpdatePricing(ctx, created.ID, PricingInput{BasePrice: decPtr("20")})
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(updated.Units[1].Price))

	updated, err = svc.UpdatePricing(ctx, created.ID, PricingInput{Units: []UnitPricingEdit{
		{Name: "pack", IsAutoPricing: boolPtr(false), Price: decPtr("110")},
	}})
	require.NoError(t, err)
	assert.False(t, updated.Units[1].IsAutoPricing)
	assert.True(t, dec("110").Equal(updated.Units[1].Price))

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(stored.Units[0].Price))
	assert.True(t, dec("110").Equal(stored.Units[1].Price))
	assert.Len(t, pub.put, 3)
}

func TestUpdatePricingFailureLeavesStoredUnits(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)

	_, err = svc.UpdatePricing(ctx, created.ID, PricingInput{
		BasePrice: decPtr("25"),
		Units:     []UnitPricingEdit{{Name: "pack", Price: decPtr("100")}},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(stored.Units[0].Price))

	_, err = svc.UpdatePricing(ctx, uuid.New(), PricingInput{BasePrice: decPtr("1")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSetActiveControlsCatalog(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)

	view, err := svc.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	assert.Equal(t, []uuid.UUID{created.ID}, pub.removed)

	loaded, err := svc.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	all, err := svc.List(ctx, ListFilter{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	loaded, err = svc.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.NoError(t, catalog.Validate(loaded[0]))
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)
	feed := CreateProductInput{
		SKU: "FEED-40", Name: "Layer feed", Category: "feed", BaseUnit: "kg", Stock: 400,
		Units: []UnitInput{
			{Name: "kg", ConversionFactor: dec("1"), Price: dec("40"), IsBase: true, Type: enums.UnitTypeRetail},
			{Name: "sack", ConversionFactor: dec("50"), Price: dec("1850"), Type: enums.UnitTypeWholesale},
		},
	}
	_, err = svc.Create(ctx, feed)
	require.NoError(t, err)

	byCategory, err := svc.List(ctx, ListFilter{Category: "feed"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "FEED-40", byCategory[0].SKU)

	bySearch, err := svc.List(ctx, ListFilter{Search: "b12"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "VIT-B12", bySearch[0].SKU)
}

func TestApplyPricingOrder(t *testing.T) {
	p := vitaminsInput().toCatalog()
	p.ID = uuid.New()

	out, err := ApplyPricing(p, PricingInput{
		BasePrice: decPtr("10"),
		Units:     []UnitPricingEdit{{Name: "pack", ConversionFactor: decPtr("12")}},
	})
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(out.Units[1].Price))
	assert.True(t, dec("0").Equal(p.Units[1].Price), "input must not be mutated")
}

func TestRepositoryFindUnits(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, vitaminsInput())
	require.NoError(t, err)

	units, err := repo.FindUnits(ctx, []UnitKey{
		{ProductID: created.ID, Name: "pack"},
		{ProductID: created.ID, Name: "piece"},
	})
	require.NoError(t, err)
	pack, ok := units[UnitKey{ProductID: created.ID, Name: "pack"}]
	require.True(t, ok)
	assert.True(t, dec("6").Equal(pack.ConversionFactor))
}

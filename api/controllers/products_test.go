package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	productsvc "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

type stubProductService struct {
	view *productsvc.ProductView
	list []productsvc.ProductView
	err  error

	lastFilter  productsvc.ListFilter
	lastCreate  productsvc.CreateProductInput
	lastPricing productsvc.PricingInput
	lastActive  *bool
}

func (s *stubProductService) LoadCatalog(context.Context) ([]catalog.Product, error) {
	return nil, s.err
}

func (s *stubProductService) List(_ context.Context, filter productsvc.ListFilter) ([]productsvc.ProductView, error) {
	s.lastFilter = filter
	return s.list, s.err
}

func (s *stubProductService) Get(context.Context, uuid.UUID) (*productsvc.ProductView, error) {
	return s.view, s.err
}

func (s *stubProductService) Create(_ context.Context, input productsvc.CreateProductInput) (*productsvc.ProductView, error) {
	s.lastCreate = input
	return s.view, s.err
}

func (s *stubProductService) UpdatePricing(_ context.Context, _ uuid.UUID, input productsvc.PricingInput) (*productsvc.ProductView, error) {
	s.lastPricing = input
	return s.view, s.err
}

func (s *stubProductService) SetActive(_ context.Context, _ uuid.UUID, active bool) (*productsvc.ProductView, error) {
	s.lastActive = &active
	return s.view, s.err
}

type stubStock struct {
	level     int
	movements []models.StockMovement
	err       error
	lastQty   int
}

func (s *stubStock) Restock(_ context.Context, _ uuid.UUID, quantity int) (int, error) {
	s.lastQty = quantity
	return s.level, s.err
}

func (s *stubStock) Movements(context.Context, uuid.UUID, int) ([]models.StockMovement, error) {
	return s.movements, s.err
}

type stubCatalogStore struct {
	products map[uuid.UUID]catalog.Product
	reloads  int
	err      error
}

func (s *stubCatalogStore) Reload(context.Context) (*catalog.Snapshot, error) {
	s.reloads++
	if s.err != nil {
		return nil, s.err
	}
	all := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, p)
	}
	return catalog.NewSnapshot(all), nil
}

func (s *stubCatalogStore) Lookup(id uuid.UUID) (catalog.Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s *stubCatalogStore) Put(p catalog.Product) error {
	s.products[p.ID] = p
	return nil
}

func feedProduct() catalog.Product {
	return catalog.Product{
		ID: uuid.New(), SKU: "FEED-1", Name: "Hog Grower", Category: "feeds", BaseUnit: "kg", Stock: 100,
		Units: []catalog.Unit{
			{Name: "kg", ConversionFactor: decimal.NewFromInt(1), Price: decimal.NewFromInt(50), IsBase: true, Type: enums.UnitTypeRetail},
			{Name: "sack", ConversionFactor: decimal.NewFromInt(25), Price: decimal.NewFromInt(1250), Type: enums.UnitTypeWholesale, IsAutoPricing: true},
		},
	}
}

func TestProductListPassesFilters(t *testing.T) {
	svc := &stubProductService{list: []productsvc.ProductView{{Product: feedProduct(), IsActive: true}}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=feeds&q=hog&include_inactive=true", nil)
	resp := httptest.NewRecorder()

	ProductList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastFilter.Category != "feeds" || svc.lastFilter.Search != "hog" || !svc.lastFilter.IncludeInactive {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}
	var envelope struct {
		Data []productsvc.ProductView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || len(envelope.Data[0].Units) != 2 {
		t.Fatalf("unexpected products %+v", envelope.Data)
	}
}

func TestProductGetInvalidID(t *testing.T) {
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/nope", nil), "productID", "nope")
	resp := httptest.NewRecorder()

	ProductGet(&stubProductService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductCreate(t *testing.T) {
	p := feedProduct()
	svc := &stubProductService{view: &productsvc.ProductView{Product: p, IsActive: true}}
	body := `{"sku":"FEED-1","name":"Hog Grower","category":"feeds","base_unit":"kg","stock":100,
		"units":[{"name":"kg","conversion_factor":"1","price":"50","is_base":true,"type":"retail"},
		{"name":"sack","conversion_factor":"25","price":"0","type":"wholesale","is_auto_pricing":true}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ProductCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.lastCreate.Units) != 2 || !svc.lastCreate.Units[1].ConversionFactor.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected create input %+v", svc.lastCreate)
	}
}

func TestProductCreateRejectsBadUnitType(t *testing.T) {
	svc := &stubProductService{}
	body := `{"sku":"X","name":"X","category":"c","base_unit":"kg","units":[{"name":"kg","conversion_factor":"1","price":"1","is_base":true,"type":"bulk"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()

	ProductCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductUpdatePricing(t *testing.T) {
	p := feedProduct()
	svc := &stubProductService{view: &productsvc.ProductView{Product: p, IsActive: true}}
	body := `{"base_price":"52","units":[{"name":"sack","is_auto_pricing":false,"price":"1200"}]}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/products/"+p.ID.String()+"/pricing", strings.NewReader(body)), "productID", p.ID.String())
	resp := httptest.NewRecorder()

	ProductUpdatePricing(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastPricing.BasePrice == nil || !svc.lastPricing.BasePrice.Equal(decimal.NewFromInt(52)) {
		t.Fatalf("unexpected base price %+v", svc.lastPricing.BasePrice)
	}
	edit := svc.lastPricing.Units[0]
	if edit.IsAutoPricing == nil || *edit.IsAutoPricing || edit.Price == nil {
		t.Fatalf("unexpected unit edit %+v", edit)
	}
}

func TestProductUpdatePricingEmpty(t *testing.T) {
	id := uuid.NewString()
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/products/"+id+"/pricing", strings.NewReader(`{"units":[]}`)), "productID", id)
	resp := httptest.NewRecorder()

	ProductUpdatePricing(&stubProductService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductSetActiveRequiresFlag(t *testing.T) {
	id := uuid.NewString()
	svc := &stubProductService{view: &productsvc.ProductView{}}

	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/products/"+id+"/active", strings.NewReader(`{}`)), "productID", id)
	resp := httptest.NewRecorder()
	ProductSetActive(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/products/"+id+"/active", strings.NewReader(`{"active":false}`)), "productID", id)
	resp = httptest.NewRecorder()
	ProductSetActive(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastActive == nil || *svc.lastActive {
		t.Fatalf("expected deactivate, got %v", svc.lastActive)
	}
}

func TestProductRestockRefreshesCatalog(t *testing.T) {
	p := feedProduct()
	store := &stubCatalogStore{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	stock := &stubStock{level: 140}
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/products/"+p.ID.String()+"/restock", strings.NewReader(`{"quantity":40}`)), "productID", p.ID.String())
	resp := httptest.NewRecorder()

	ProductRestock(stock, store, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if stock.lastQty != 40 {
		t.Fatalf("unexpected quantity %d", stock.lastQty)
	}
	if got := store.products[p.ID].Stock; got != 140 {
		t.Fatalf("catalog stock not refreshed: %d", got)
	}
}

func TestProductRestockNotFound(t *testing.T) {
	id := uuid.NewString()
	stock := &stubStock{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/products/"+id+"/restock", strings.NewReader(`{"quantity":1}`)), "productID", id)
	resp := httptest.NewRecorder()

	ProductRestock(stock, nil, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestProductMovements(t *testing.T) {
	id := uuid.New()
	stock := &stubStock{movements: []models.StockMovement{{ID: uuid.New(), ProductID: id, Delta: -3, Reason: enums.StockMovementSale}}}
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String()+"/movements?limit=10", nil), "productID", id.String())
	resp := httptest.NewRecorder()

	ProductMovements(stock, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data []stockMovementView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].Delta != -3 {
		t.Fatalf("unexpected movements %+v", envelope.Data)
	}
}

func TestCatalogReload(t *testing.T) {
	p := feedProduct()
	store := &stubCatalogStore{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	resp := httptest.NewRecorder()

	CatalogReload(store, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reload", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data reloadResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Products != 1 || store.reloads != 1 {
		t.Fatalf("unexpected reload result %+v (reloads %d)", envelope.Data, store.reloads)
	}
}

func TestCatalogReloadFailureIsDependencyError(t *testing.T) {
	store := &stubCatalogStore{err: errors.New("db down")}
	resp := httptest.NewRecorder()

	CatalogReload(store, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reload", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

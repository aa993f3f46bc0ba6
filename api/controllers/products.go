package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/agrivet-pos/api/responses"
	"github.com/angelmondragon/agrivet-pos/api/validators"
	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	productsvc "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

// CatalogStore is the live in-memory catalog carts price against.
type CatalogStore interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
	Lookup(id uuid.UUID) (catalog.Product, bool)
	Put(p catalog.Product) error
}

// StockService adjusts and reports on-hand stock.
type StockService interface {
	Restock(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
	Movements(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockMovement, error)
}

// ProductList returns catalog products, optionally filtered by category or a
// name/SKU search. Inactive products are included with ?include_inactive=true.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		q := r.URL.Query()
		filter := productsvc.ListFilter{
			Category:        strings.TrimSpace(q.Get("category")),
			Search:          strings.TrimSpace(q.Get("q")),
			IncludeInactive: strings.EqualFold(q.Get("include_inactive"), "true"),
		}
		products, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductCreate adds a product. Auto-priced units are computed from the base
// unit price before the product is stored.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload productsvc.CreateProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdatePricing(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productsvc.PricingInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.BasePrice == nil && len(payload.Units) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}
		product, err := svc.UpdatePricing(r.Context(), id, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func ProductSetActive(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetActive(r.Context(), id, *payload.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type restockResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Stock     int       `json:"stock"`
}

// ProductRestock adds base units to a product's stock and refreshes the
// in-memory copy so the new level is visible without a reload.
func ProductRestock(stock StockService, store CatalogStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stock == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := stock.Restock(r.Context(), id, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if store != nil {
			if p, ok := store.Lookup(id); ok {
				p.Stock = level
				if err := store.Put(p); err != nil && logg != nil {
					logg.Error(logg.WithField(r.Context(), "product_id", id.String()), "catalog.restock_refresh_failed", err)
				}
			}
		}
		responses.WriteSuccess(w, restockResponse{ProductID: id, Stock: level})
	}
}

func ProductMovements(stock StockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stock == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := stock.Movements(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements"))
			return
		}
		responses.WriteSuccess(w, newStockMovementViews(rows))
	}
}

type reloadResponse struct {
	Products int `json:"products"`
}

// CatalogReload swaps in a fresh catalog snapshot from the database.
func CatalogReload(store CatalogStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		snap, err := store.Reload(r.Context())
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload catalog")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reloadResponse{Products: snap.Len()})
	}
}

package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/internal/catalog"
	"github.com/angelmondragon/agrivet-pos/internal/pricing"
	"github.com/angelmondragon/agrivet-pos/pkg/db"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

// Service exposes catalog management operations.
type Service interface {
	LoadCatalog(ctx context.Context) ([]catalog.Product, error)
	List(ctx context.Context, filter ListFilter) ([]ProductView, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductView, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductView, error)
	UpdatePricing(ctx context.Context, id uuid.UUID, input PricingInput) (*ProductView, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*ProductView, error)
}

// ProductView is a stored product as returned by the management API.
type ProductView struct {
	catalog.Product
	IsActive bool `json:"is_active"`
}

// CatalogPublisher receives catalog edits so open carts see them without a reload.
type CatalogPublisher interface {
	Put(p catalog.Product) error
	Remove(id uuid.UUID)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      ProductRepository
	tx        txRunner
	publisher CatalogPublisher
	logg      *logger.Logger
}

// NewService wires the product service. publisher may be nil when no live
// catalog is kept in memory (e.g. the migrate command).
func NewService(repo ProductRepository, tx txRunner, publisher CatalogPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, publisher: publisher, logg: logg}, nil
}

// LoadCatalog implements catalog.Loader.
func (s *service) LoadCatalog(ctx context.Context) ([]catalog.Product, error) {
	return RepositoryLoader{Repo: s.repo}.LoadCatalog(ctx)
}

// RepositoryLoader reads the active catalog straight from the repository, so
// the catalog store can exist before the service that publishes into it.
type RepositoryLoader struct {
	Repo ProductRepository
}

func (l RepositoryLoader) LoadCatalog(ctx context.Context) ([]catalog.Product, error) {
	rows, err := l.Repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	out := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToCatalog(row))
	}
	return out, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ProductView, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductView, error) {
	row, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	view := toView(*row)
	return &view, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductView, error) {
	p := input.toCatalog()
	p.ID = uuid.New()
	p = pricing.Reprice(p)
	if err := catalog.Validate(p); err != nil {
		return nil, err
	}

	row := &models.Product{
		ID:       p.ID,
		SKU:      p.SKU,
		Name:     p.Name,
		Category: p.Category,
		BaseUnit: p.BaseUnit,
		Stock:    p.Stock,
		IsActive: true,
		Units:    unitModels(p),
	}
	if _, err := s.repo.CreateProduct(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists").
				WithDetails(map[string]any{"sku": p.SKU})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	s.publish(ctx, p)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"product_id": p.ID.String(), "sku": p.SKU}), "product.created")
	view := ProductView{Product: p, IsActive: true}
	return &view, nil
}

// UpdatePricing applies a base price change and per-unit edits in one
// transaction, recomputing every auto-priced unit.
func (s *service) UpdatePricing(ctx context.Context, id uuid.UUID, input PricingInput) (*ProductView, error) {
	var view ProductView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := s.find(ctx, txRepo, id)
		if err != nil {
			return err
		}
		next, err := ApplyPricing(ToCatalog(*row), input)
		if err != nil {
			return err
		}
		if err := catalog.Validate(next); err != nil {
			return err
		}
		if err := txRepo.ReplaceUnits(ctx, id, unitModels(next)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save units")
		}
		view = ProductView{Product: next, IsActive: row.IsActive}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if view.IsActive {
		s.publish(ctx, view.Product)
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product.pricing_updated")
	return &view, nil
}

// SetActive toggles whether the product can be sold. Inactive products leave
// the live catalog immediately; lines already in a cart keep their snapshot.
func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*ProductView, error) {
	var view ProductView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := s.find(ctx, txRepo, id)
		if err != nil {
			return err
		}
		row.IsActive = active
		if _, err := txRepo.UpdateProduct(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		view = toView(*row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if active {
		s.publish(ctx, view.Product)
	} else if s.publisher != nil {
		s.publisher.Remove(id)
	}
	return &view, nil
}

// ApplyPricing runs the edits of input against p in order: base price first,
// then for each unit its factor, auto-pricing flag and manual price.
func ApplyPricing(p catalog.Product, input PricingInput) (catalog.Product, error) {
	var err error
	if input.BasePrice != nil {
		if p, err = pricing.SetBasePrice(p, *input.BasePrice); err != nil {
			return p, err
		}
	}
	for _, edit := range input.Units {
		if edit.ConversionFactor != nil {
			if p, err = pricing.SetConversionFactor(p, edit.Name, *edit.ConversionFactor); err != nil {
				return p, err
			}
		}
		if edit.IsAutoPricing != nil {
			if p, err = pricing.SetAutoPricing(p, edit.Name, *edit.IsAutoPricing); err != nil {
				return p, err
			}
		}
		if edit.Price != nil {
			if p, err = pricing.SetManualPrice(p, edit.Name, *edit.Price); err != nil {
				return p, err
			}
		}
	}
	return p, nil
}

func (s *service) find(ctx context.Context, repo ProductRepository, id uuid.UUID) (*models.Product, error) {
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return row, nil
}

func (s *service) publish(ctx context.Context, p catalog.Product) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Put(p); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "product_id", p.ID.String()), "product.publish_failed", err)
	}
}

func toView(row models.Product) ProductView {
	return ProductView{Product: ToCatalog(row), IsActive: row.IsActive}
}

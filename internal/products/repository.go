package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
)

// ProductRepository defines catalog persistence.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	ListActive(ctx context.Context) ([]models.Product, error)
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	ReplaceUnits(ctx context.Context, productID uuid.UUID, units []models.ProductUnit) error
	FindUnits(ctx context.Context, keys []UnitKey) (map[UnitKey]models.ProductUnit, error)
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category        string
	Search          string
	IncludeInactive bool
}

// UnitKey addresses one unit of one product.
type UnitKey struct {
	ProductID uuid.UUID
	Name      string
}

// Repository is the GORM-backed ProductRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	return &Repository{db: tx}
}

func orderedUnits(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// ListActive loads every sellable product with its units.
func (r *Repository) ListActive(ctx context.Context) ([]models.Product, error) {
	return r.List(ctx, ListFilter{})
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Preload("Units", orderedUnits)
	if !filter.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	var rows []models.Product
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads the product and its units.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Units", orderedUnits).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product together with its units.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct saves the product row. Units are written through ReplaceUnits.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	err := r.db.WithContext(ctx).
		Model(&models.Product{ID: product.ID}).
		Select("sku", "name", "category", "base_unit", "is_active").
		Updates(product).Error
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ReplaceUnits swaps the full unit list of a product.
func (r *Repository) ReplaceUnits(ctx context.Context, productID uuid.UUID, units []models.ProductUnit) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductUnit{}).Error; err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}
	for i := range units {
		units[i].ID = uuid.Nil
		units[i].ProductID = productID
		units[i].Position = i
	}
	return tx.Create(&units).Error
}

// FindUnits resolves the named units of several products in one query.
func (r *Repository) FindUnits(ctx context.Context, keys []UnitKey) (map[UnitKey]models.ProductUnit, error) {
	out := make(map[UnitKey]models.ProductUnit, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(keys))
	seen := make(map[uuid.UUID]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.ProductID]; ok {
			continue
		}
		seen[k.ProductID] = struct{}{}
		ids = append(ids, k.ProductID)
	}
	var rows []models.ProductUnit
	if err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[UnitKey{ProductID: u.ProductID, Name: u.Name}] = u
	}
	return out, nil
}

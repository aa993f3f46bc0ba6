package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

// Snapshot is an immutable view of the catalog as loaded at LoadedAt.
type Snapshot struct {
	products map[uuid.UUID]Product
	order    []uuid.UUID
	LoadedAt time.Time
}

// NewSnapshot indexes products by id, keeping the given order for listing.
// Later duplicates of an id replace earlier ones.
func NewSnapshot(products []Product) *Snapshot {
	s := &Snapshot{
		products: make(map[uuid.UUID]Product, len(products)),
		order:    make([]uuid.UUID, 0, len(products)),
		LoadedAt: time.Now().UTC(),
	}
	for _, p := range products {
		if _, exists := s.products[p.ID]; !exists {
			s.order = append(s.order, p.ID)
		}
		s.products[p.ID] = p.Clone()
	}
	return s
}

// Lookup returns a copy of the product with the given id.
func (s *Snapshot) Lookup(id uuid.UUID) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	p, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return p.Clone(), true
}

// Products lists every product in load order.
func (s *Snapshot) Products() []Product {
	if s == nil {
		return nil
	}
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id].Clone())
	}
	return out
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.products)
}

// Loader reads the full active catalog from persistence.
type Loader interface {
	LoadCatalog(ctx context.Context) ([]Product, error)
}

// Store publishes the currently loaded catalog snapshot. Readers never block;
// concurrent Reload calls share a single load.
type Store struct {
	loader  Loader
	logg    *logger.Logger
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

func NewStore(loader Loader, logg *logger.Logger) (*Store, error) {
	if loader == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{loader: loader, logg: logg}
	s.current.Store(NewSnapshot(nil))
	return s, nil
}

// Snapshot returns the snapshot currently in effect.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Lookup resolves a product against the current snapshot.
func (s *Store) Lookup(id uuid.UUID) (Product, bool) {
	return s.Snapshot().Lookup(id)
}

// Reload loads the catalog and swaps it in. Products that fail validation are
// left out and logged; they stay unsellable until fixed.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.group.Do("reload", func() (any, error) {
		products, err := s.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}

		valid := make([]Product, 0, len(products))
		for _, p := range products {
			if verr := Validate(p); verr != nil {
				s.logg.Error(s.logg.WithField(ctx, "product_id", p.ID.String()), "catalog.product_rejected", verr)
				continue
			}
			valid = append(valid, p)
		}

		snap := NewSnapshot(valid)
		s.current.Store(snap)

		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"loaded":   len(valid),
			"rejected": len(products) - len(valid),
		}), "catalog.reloaded")
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Put replaces a single product in the current snapshot after a catalog edit,
// without a full reload.
func (s *Store) Put(p Product) error {
	if err := Validate(p); err != nil {
		return err
	}
	for {
		prev := s.current.Load()
		products := prev.Products()
		replaced := false
		for i := range products {
			if products[i].ID == p.ID {
				products[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			products = append(products, p)
		}
		next := NewSnapshot(products)
		if s.current.CompareAndSwap(prev, next) {
			return nil
		}
	}
}

// Remove drops a product from the current snapshot, e.g. once it is deactivated.
func (s *Store) Remove(id uuid.UUID) {
	for {
		prev := s.current.Load()
		if _, ok := prev.Lookup(id); !ok {
			return
		}
		products := prev.Products()
		kept := products[:0]
		for _, p := range products {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		if s.current.CompareAndSwap(prev, NewSnapshot(kept)) {
			return
		}
	}
}

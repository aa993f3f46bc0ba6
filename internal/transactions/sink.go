package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	product "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/internal/stock"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BreakerSettings controls when the sink stops talking to the database.
type BreakerSettings struct {
	MaxFailures  uint32
	OpenInterval time.Duration
}

// rejection rolls the sale back and is reported to the till as a failed
// result, not as an error, so business refusals never trip the breaker.
type rejection struct {
	reason string
}

func (r rejection) Error() string { return r.reason }

// Sink records checkouts in the database and takes the sold quantities out of stock.
type Sink struct {
	tx       txRunner
	repo     *Repository
	products product.ProductRepository
	stock    *stock.Gateway
	breaker  *gobreaker.CircuitBreaker[checkout.SinkResult]
	logg     *logger.Logger
}

func NewSink(tx txRunner, repo *Repository, products product.ProductRepository, gateway *stock.Gateway, settings BreakerSettings, logg *logger.Logger) (*Sink, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("stock gateway required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenInterval <= 0 {
		settings.OpenInterval = 30 * time.Second
	}

	s := &Sink{tx: tx, repo: repo, products: products, stock: gateway, logg: logg}
	s.breaker = gobreaker.NewCircuitBreaker[checkout.SinkResult](gobreaker.Settings{
		Name:        "transaction-sink",
		MaxRequests: 1,
		Timeout:     settings.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Warn(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "transactions.breaker_state_changed")
		},
	})
	return s, nil
}

// Submit implements checkout.Sink.
func (s *Sink) Submit(ctx context.Context, payload checkout.TransactionPayload) (checkout.SinkResult, error) {
	res, err := s.breaker.Execute(func() (checkout.SinkResult, error) {
		return s.record(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return checkout.SinkResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transaction store unavailable")
	}
	return res, err
}

// BreakerState reports the breaker state for readiness checks.
func (s *Sink) BreakerState() string {
	return s.breaker.State().String()
}

func (s *Sink) record(ctx context.Context, payload checkout.TransactionPayload) (checkout.SinkResult, error) {
	txID := uuid.New()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		keys := make([]product.UnitKey, 0, len(payload.Items))
		for _, item := range payload.Items {
			keys = append(keys, product.UnitKey{ProductID: item.ProductID, Name: item.UnitType})
		}
		units, err := s.products.WithTx(tx).FindUnits(ctx, keys)
		if err != nil {
			return fmt.Errorf("resolve units: %w", err)
		}

		row := &models.Transaction{
			ID:            txID,
			SessionID:     payload.SessionID,
			CashierID:     payload.CashierID,
			Subtotal:      payload.Subtotal,
			Total:         payload.Total,
			PaymentMethod: enums.PaymentMethod(payload.PaymentMethod),
			Notes:         payload.Notes,
			Items:         make([]models.TransactionItem, 0, len(payload.Items)),
			CreatedAt:     time.Now().UTC(),
		}
		adjustments := make([]stock.Adjustment, 0, len(payload.Items))
		for i, item := range payload.Items {
			unit, ok := units[keys[i]]
			if !ok {
				return rejection{reason: fmt.Sprintf("product %s no longer sells unit %q", item.ProductID, item.UnitType)}
			}
			row.Items = append(row.Items, models.TransactionItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				UnitType:  item.UnitType,
				Subtotal:  item.Subtotal,
				Position:  i,
			})
			adjustments = append(adjustments, stock.Adjustment{
				ProductID: item.ProductID,
				Quantity:  stock.BaseQuantity(item.Quantity, unit.ConversionFactor),
			})
		}

		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := s.stock.Decrement(ctx, tx, txID, adjustments); err != nil {
			if stock.IsInsufficient(err) {
				return rejection{reason: pkgerrors.As(err).Message()}
			}
			return err
		}
		return nil
	})

	var rej rejection
	switch {
	case errors.As(err, &rej):
		s.logg.Warn(s.logg.WithField(ctx, "reason", rej.reason), "transactions.sale_rejected")
		return checkout.SinkResult{Success: false, Error: rej.reason}, nil
	case err != nil:
		return checkout.SinkResult{}, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_id": txID.String(),
		"items":          len(payload.Items),
	}), "transactions.recorded")
	return checkout.SinkResult{Success: true, TransactionID: txID.String()}, nil
}

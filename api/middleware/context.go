package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxCashierID contextKey = "cashier_id"
)

// CashierHeader identifies the cashier operating the till. Authentication is
// handled upstream; the value is trusted as given.
const CashierHeader = "X-Cashier-Id"

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

func CashierIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCashierID).(string); ok {
		return v
	}
	return ""
}

// WithCashierID injects the cashier identifier into the context.
func WithCashierID(ctx context.Context, cashierID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCashierID, cashierID)
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// Cashier copies the X-Cashier-Id header into the context and the request logger.
func Cashier(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cashierID := strings.TrimSpace(r.Header.Get(CashierHeader))
			if cashierID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithCashierID(r.Context(), cashierID)
			if logg != nil {
				ctx = logg.WithCashierID(ctx, cashierID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

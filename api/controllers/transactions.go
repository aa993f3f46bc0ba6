package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/agrivet-pos/api/responses"
	"github.com/angelmondragon/agrivet-pos/api/validators"
	"github.com/angelmondragon/agrivet-pos/internal/transactions"
	"github.com/angelmondragon/agrivet-pos/pkg/db/models"
	"github.com/angelmondragon/agrivet-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
	"github.com/angelmondragon/agrivet-pos/pkg/pagination"
)

// TransactionReader is the read side of the sales history.
type TransactionReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, filter transactions.ListFilter) (*transactions.ListResult, error)
	DailySummary(ctx context.Context, day time.Time) (*transactions.DailySummary, error)
}

// TransactionList pages through recorded sales, newest first. Dates are
// whole days in UTC; to is inclusive.
func TransactionList(repo TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}
		filter, err := transactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := repo.List(r.Context(), filter)
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := transactionPage{Items: make([]transactionView, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, t := range page.Items {
			out.Items = append(out.Items, newTransactionView(t))
		}
		responses.WriteSuccess(w, out)
	}
}

func transactionFilter(r *http.Request) (transactions.ListFilter, error) {
	q := r.URL.Query()
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return transactions.ListFilter{}, err
	}
	filter := transactions.ListFilter{
		SessionID: strings.TrimSpace(q.Get("session_id")),
		CashierID: strings.TrimSpace(q.Get("cashier_id")),
		Page:      pagination.Params{Limit: limit, Cursor: strings.TrimSpace(q.Get("cursor"))},
	}
	if raw := strings.TrimSpace(q.Get("payment_method")); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return transactions.ListFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
		}
		filter.PaymentMethod = method
	}
	if filter.From, err = validators.ParseQueryDate(r, "from", time.UTC); err != nil {
		return transactions.ListFilter{}, err
	}
	to, err := validators.ParseQueryDate(r, "to", time.UTC)
	if err != nil {
		return transactions.ListFilter{}, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return transactions.ListFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	return filter, nil
}

func TransactionGet(repo TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := repo.Get(r.Context(), id)
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get transaction")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionView(*txn))
	}
}

// DailyReport totals one day of sales by payment method. It defaults to today (UTC).
func DailyReport(repo TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}
		day, err := validators.ParseQueryDate(r, "date", time.UTC)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		when := time.Now().UTC()
		if day != nil {
			when = *day
		}
		summary, err := repo.DailySummary(r.Context(), when)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "daily summary"))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/agrivet-pos/api/middleware"
	"github.com/angelmondragon/agrivet-pos/api/responses"
	"github.com/angelmondragon/agrivet-pos/api/validators"
	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	"github.com/angelmondragon/agrivet-pos/internal/session"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

// SessionService drives open tills and their carts.
type SessionService interface {
	Open(ctx context.Context, cashierID string) (session.View, error)
	Get(ctx context.Context, id string) (session.View, error)
	Close(ctx context.Context, id string) error
	AddItem(ctx context.Context, id string, productID uuid.UUID, unitName string) (session.View, error)
	UpdateItem(ctx context.Context, id string, productID uuid.UUID, unitName string, delta float64) (session.View, error)
	SetItem(ctx context.Context, id string, productID uuid.UUID, unitName string, quantity float64) (session.View, error)
	RemoveItem(ctx context.Context, id string, productID uuid.UUID, unitName string) (session.View, error)
	Checkout(ctx context.Context, id string, req checkout.Request) (checkout.Result, error)
}

type openSessionRequest struct {
	CashierID string `json:"cashier_id" validate:"omitempty,max=64"`
}

type itemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	UnitName  string    `json:"unit_name" validate:"required,max=64"`
}

type deltaRequest struct {
	itemRequest
	Delta *float64 `json:"delta" validate:"required"`
}

type setRequest struct {
	itemRequest
	Quantity *float64 `json:"quantity" validate:"required"`
}

type checkoutRequest struct {
	PaymentMethod string  `json:"payment_method" validate:"required,max=32"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// SessionOpen starts a till session. The cashier comes from the X-Cashier-Id
// header; a body value is accepted when the header is absent.
func SessionOpen(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		cashierID := middleware.CashierIDFromContext(r.Context())
		if r.ContentLength != 0 {
			var payload openSessionRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			body := strings.TrimSpace(payload.CashierID)
			if cashierID != "" && body != "" && body != cashierID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier id mismatch"))
				return
			}
			if cashierID == "" {
				cashierID = body
			}
		}
		view, err := svc.Open(r.Context(), cashierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func SessionGet(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func SessionClose(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Close(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// SessionAddItem adds one unit of a product, creating the line if needed.
func SessionAddItem(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return sessionMutation(svc, logg, func(r *http.Request, id string) (session.View, error) {
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return session.View{}, err
		}
		return svc.AddItem(r.Context(), id, payload.ProductID, payload.UnitName)
	})
}

// SessionUpdateItem shifts a line's quantity by delta. A result at or below
// zero removes the line.
func SessionUpdateItem(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return sessionMutation(svc, logg, func(r *http.Request, id string) (session.View, error) {
		var payload deltaRequest
		if err := decodeQuantityBody(r, &payload, "delta"); err != nil {
			return session.View{}, err
		}
		return svc.UpdateItem(r.Context(), id, payload.ProductID, payload.UnitName, *payload.Delta)
	})
}

// SessionSetItem sets a line's quantity outright; fractional quantities are allowed.
func SessionSetItem(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return sessionMutation(svc, logg, func(r *http.Request, id string) (session.View, error) {
		var payload setRequest
		if err := decodeQuantityBody(r, &payload, "quantity"); err != nil {
			return session.View{}, err
		}
		return svc.SetItem(r.Context(), id, payload.ProductID, payload.UnitName, *payload.Quantity)
	})
}

func SessionRemoveItem(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return sessionMutation(svc, logg, func(r *http.Request, id string) (session.View, error) {
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return session.View{}, err
		}
		return svc.RemoveItem(r.Context(), id, payload.ProductID, payload.UnitName)
	})
}

// SessionCheckout submits the session's cart to the transaction sink. The cart
// is cleared only when the sink confirms the sale.
func SessionCheckout(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Checkout(r.Context(), id, checkout.Request{
			PaymentMethod: payload.PaymentMethod,
			Notes:         payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, res)
	}
}

func sessionMutation(svc SessionService, logg *logger.Logger, apply func(r *http.Request, id string) (session.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		id, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := apply(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// decodeQuantityBody decodes like DecodeJSONBody but reports a non-numeric
// quantity field as INVALID_QUANTITY.
func decodeQuantityBody(r *http.Request, dest any, field string) error {
	err := validators.DecodeJSONBody(r, dest)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == field {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidQuantity, typeErr, field+" must be a number").
			WithDetails(map[string]any{"field": field, "got": typeErr.Value})
	}
	return err
}

func sessionIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	return id, nil
}

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/agrivet-pos/api/middleware"
	"github.com/angelmondragon/agrivet-pos/internal/checkout"
	"github.com/angelmondragon/agrivet-pos/internal/session"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
)

type stubSessionService struct {
	view   session.View
	result checkout.Result
	err    error

	lastCashier  string
	lastID       string
	lastProduct  uuid.UUID
	lastUnit     string
	lastQuantity float64
	lastRequest  checkout.Request
	calls        []string
}

func (s *stubSessionService) Open(_ context.Context, cashierID string) (session.View, error) {
	s.calls = append(s.calls, "open")
	s.lastCashier = cashierID
	return s.view, s.err
}

func (s *stubSessionService) Get(_ context.Context, id string) (session.View, error) {
	s.calls = append(s.calls, "get")
	s.lastID = id
	return s.view, s.err
}

func (s *stubSessionService) Close(_ context.Context, id string) error {
	s.calls = append(s.calls, "close")
	s.lastID = id
	return s.err
}

func (s *stubSessionService) AddItem(_ context.Context, id string, productID uuid.UUID, unitName string) (session.View, error) {
	s.calls = append(s.calls, "add")
	s.lastID, s.lastProduct, s.lastUnit = id, productID, unitName
	return s.view, s.err
}

func (s *stubSessionService) UpdateItem(_ context.Context, id string, productID uuid.UUID, unitName string, delta float64) (session.View, error) {
	s.calls = append(s.calls, "update")
	s.lastID, s.lastProduct, s.lastUnit, s.lastQuantity = id, productID, unitName, delta
	return s.view, s.err
}

func (s *stubSessionService) SetItem(_ context.Context, id string, productID uuid.UUID, unitName string, quantity float64) (session.View, error) {
	s.calls = append(s.calls, "set")
	s.lastID, s.lastProduct, s.lastUnit, s.lastQuantity = id, productID, unitName, quantity
	return s.view, s.err
}

func (s *stubSessionService) RemoveItem(_ context.Context, id string, productID uuid.UUID, unitName string) (session.View, error) {
	s.calls = append(s.calls, "remove")
	s.lastID, s.lastProduct, s.lastUnit = id, productID, unitName
	return s.view, s.err
}

func (s *stubSessionService) Checkout(_ context.Context, id string, req checkout.Request) (checkout.Result, error) {
	s.calls = append(s.calls, "checkout")
	s.lastID = id
	s.lastRequest = req
	return s.result, s.err
}

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rc := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rc.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestSessionOpenUsesCashierHeader(t *testing.T) {
	svc := &stubSessionService{view: session.View{SessionID: "s-1", CashierID: "cashier-9"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req = req.WithContext(middleware.WithCashierID(req.Context(), "cashier-9"))
	resp := httptest.NewRecorder()

	SessionOpen(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastCashier != "cashier-9" {
		t.Fatalf("unexpected cashier %q", svc.lastCashier)
	}
	var envelope struct {
		Data session.View `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SessionID != "s-1" {
		t.Fatalf("unexpected session id %q", envelope.Data.SessionID)
	}
}

func TestSessionOpenFallsBackToBody(t *testing.T) {
	svc := &stubSessionService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"cashier_id":"cashier-2"}`))
	resp := httptest.NewRecorder()

	SessionOpen(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastCashier != "cashier-2" {
		t.Fatalf("unexpected cashier %q", svc.lastCashier)
	}
}

func TestSessionOpenRejectsMismatchedCashier(t *testing.T) {
	svc := &stubSessionService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"cashier_id":"someone-else"}`))
	req = req.WithContext(middleware.WithCashierID(req.Context(), "cashier-9"))
	resp := httptest.NewRecorder()

	SessionOpen(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called, got %v", svc.calls)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	svc := &stubSessionService{err: session.ErrSessionNotFound}
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil), "sessionID", "missing")
	resp := httptest.NewRecorder()

	SessionGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if svc.lastID != "missing" {
		t.Fatalf("unexpected session id %q", svc.lastID)
	}
}

func TestSessionCloseReturnsNoContent(t *testing.T) {
	svc := &stubSessionService{}
	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1", nil), "sessionID", "s-1")
	resp := httptest.NewRecorder()

	SessionClose(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}

func TestSessionItemMutations(t *testing.T) {
	productID := uuid.New()
	cases := []struct {
		name     string
		handler  func(SessionService) http.HandlerFunc
		method   string
		body     string
		call     string
		quantity float64
	}{
		{
			name:    "add",
			handler: func(s SessionService) http.HandlerFunc { return SessionAddItem(s, nil) },
			method:  http.MethodPost,
			body:    `{"product_id":"` + productID.String() + `","unit_name":"sack"}`,
			call:    "add",
		},
		{
			name:     "delta",
			handler:  func(s SessionService) http.HandlerFunc { return SessionUpdateItem(s, nil) },
			method:   http.MethodPatch,
			body:     `{"product_id":"` + productID.String() + `","unit_name":"sack","delta":-1}`,
			call:     "update",
			quantity: -1,
		},
		{
			name:     "set fractional",
			handler:  func(s SessionService) http.HandlerFunc { return SessionSetItem(s, nil) },
			method:   http.MethodPut,
			body:     `{"product_id":"` + productID.String() + `","unit_name":"kg","quantity":2.5}`,
			call:     "set",
			quantity: 2.5,
		},
		{
			name:    "remove",
			handler: func(s SessionService) http.HandlerFunc { return SessionRemoveItem(s, nil) },
			method:  http.MethodDelete,
			body:    `{"product_id":"` + productID.String() + `","unit_name":"sack"}`,
			call:    "remove",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSessionService{}
			req := withURLParams(httptest.NewRequest(tc.method, "/api/v1/sessions/s-1/items", strings.NewReader(tc.body)), "sessionID", "s-1")
			resp := httptest.NewRecorder()

			tc.handler(svc).ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
			}
			if len(svc.calls) != 1 || svc.calls[0] != tc.call {
				t.Fatalf("unexpected calls %v", svc.calls)
			}
			if svc.lastProduct != productID || svc.lastID != "s-1" {
				t.Fatalf("unexpected target %s/%s", svc.lastID, svc.lastProduct)
			}
			if svc.lastQuantity != tc.quantity {
				t.Fatalf("expected quantity %v got %v", tc.quantity, svc.lastQuantity)
			}
		})
	}
}

func TestSessionSetItemRequiresQuantity(t *testing.T) {
	svc := &stubSessionService{}
	body := `{"product_id":"` + uuid.NewString() + `","unit_name":"kg"}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/sessions/s-1/items", strings.NewReader(body)), "sessionID", "s-1")
	resp := httptest.NewRecorder()

	SessionSetItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called, got %v", svc.calls)
	}
}

func TestSessionItemNonNumericQuantity(t *testing.T) {
	product := uuid.NewString()
	tests := []struct {
		name    string
		method  string
		body    string
		handler func(SessionService) http.HandlerFunc
	}{
		{"set string", http.MethodPut, `{"product_id":"` + product + `","unit_name":"kg","quantity":"two"}`, func(s SessionService) http.HandlerFunc { return SessionSetItem(s, nil) }},
		{"set bool", http.MethodPut, `{"product_id":"` + product + `","unit_name":"kg","quantity":true}`, func(s SessionService) http.HandlerFunc { return SessionSetItem(s, nil) }},
		{"delta string", http.MethodPatch, `{"product_id":"` + product + `","unit_name":"kg","delta":"NaN"}`, func(s SessionService) http.HandlerFunc { return SessionUpdateItem(s, nil) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSessionService{}
			req := withURLParams(httptest.NewRequest(tc.method, "/api/v1/sessions/s-1/items", strings.NewReader(tc.body)), "sessionID", "s-1")
			resp := httptest.NewRecorder()

			tc.handler(svc).ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if code := decodeError(t, resp); code != string(pkgerrors.CodeInvalidQuantity) {
				t.Fatalf("expected %s got %s", pkgerrors.CodeInvalidQuantity, code)
			}
			if len(svc.calls) != 0 {
				t.Fatalf("service should not be called, got %v", svc.calls)
			}
		})
	}
}

func TestSessionItemBadProductIDStaysValidationError(t *testing.T) {
	svc := &stubSessionService{}
	body := `{"product_id":42,"unit_name":"kg","quantity":2}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/sessions/s-1/items", strings.NewReader(body)), "sessionID", "s-1")
	resp := httptest.NewRecorder()

	SessionSetItem(svc, nil).ServeHTTP(resp, req)

	if code := decodeError(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeValidation, code)
	}
}

func TestSessionAddItemUnknownProduct(t *testing.T) {
	svc := &stubSessionService{err: pkgerrors.New(pkgerrors.CodeUnknownProduct, "product not found")}
	body := `{"product_id":"` + uuid.NewString() + `","unit_name":"sack"}`
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/items", strings.NewReader(body)), "sessionID", "s-1")
	resp := httptest.NewRecorder()

	SessionAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if code := decodeError(t, resp); code != string(pkgerrors.CodeUnknownProduct) {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestSessionCheckoutCreated(t *testing.T) {
	notes := "walk-in"
	svc := &stubSessionService{result: checkout.Result{TransactionID: "txn-1"}}
	body := `{"payment_method":"cash","notes":"walk-in"}`
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/checkout", strings.NewReader(body)), "sessionID", "s-1")
	resp := httptest.NewRecorder()

	SessionCheckout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastRequest.PaymentMethod != "cash" || svc.lastRequest.Notes == nil || *svc.lastRequest.Notes != notes {
		t.Fatalf("unexpected request %+v", svc.lastRequest)
	}
	var envelope struct {
		Data checkout.Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TransactionID != "txn-1" {
		t.Fatalf("unexpected transaction id %q", envelope.Data.TransactionID)
	}
}

func TestSessionCheckoutFailureKeepsStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{checkout.ErrCheckoutFailed, http.StatusBadGateway},
		{checkout.ErrCheckoutInProgress, http.StatusConflict},
		{pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		svc := &stubSessionService{err: tc.err}
		req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/checkout", strings.NewReader(`{"payment_method":"cash"}`)), "sessionID", "s-1")
		resp := httptest.NewRecorder()

		SessionCheckout(svc, nil).ServeHTTP(resp, req)

		if resp.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, resp.Code)
		}
	}
}

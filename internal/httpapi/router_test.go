package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/checkout"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/health"
	"github.com/noah-isme/pos-terminal/internal/httpapi"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/prefs"
	"github.com/noah-isme/pos-terminal/internal/scan"
)

type apiSource struct {
	products  []catalog.Product
	customers []catalog.Customer
}

func (s *apiSource) ListProducts(context.Context) ([]catalog.Product, error) {
	return s.products, nil
}

func (s *apiSource) ListCustomers(context.Context) ([]catalog.Customer, error) {
	return s.customers, nil
}

func (s *apiSource) ListCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: "cat-1", Name: "Groceries"}}, nil
}

type apiSaleBackend struct {
	mu    sync.Mutex
	sales []backend.Sale
	err   error
	block chan struct{}
}

func (s *apiSaleBackend) SubmitSale(_ context.Context, sale backend.Sale) (backend.SaleRecord, error) {
	s.mu.Lock()
	s.sales = append(s.sales, sale)
	block := s.block
	err := s.err
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return backend.SaleRecord{}, err
	}
	return backend.SaleRecord{ID: "sale-1", Number: "INV-0001", Sale: sale}, nil
}

func (s *apiSaleBackend) submitted() []backend.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Sale, len(s.sales))
	copy(out, s.sales)
	return out
}

type apiExternal struct{}

func (apiExternal) ExternalLookup(context.Context, string) (catalog.ProductDraft, error) {
	return catalog.ProductDraft{}, backend.ErrNotFound
}

type healthyChecker struct{}

func (healthyChecker) PingBackend(context.Context, time.Duration) error { return nil }
func (healthyChecker) CatalogLoaded() bool                              { return true }

type api struct {
	mux     *chi.Mux
	sales   *apiSaleBackend
	session *checkout.Session
}

func newAPI(t *testing.T) *api {
	t.Helper()
	source := &apiSource{
		products: []catalog.Product{
			{
				ID:            "p-1",
				Name:          "Mealie Meal",
				SKU:           "MM-25",
				Barcode:       "6009001",
				Price:         decimal.NewFromInt(50),
				Stock:         decimal.NewFromInt(10),
				UnitOfMeasure: money.UnitPiece,
				Status:        catalog.StatusActive,
			},
		},
		customers: []catalog.Customer{
			{ID: "c-1", Name: "Grace", StoreCredit: decimal.NewFromInt(20)},
		},
	}
	catalogSvc := catalog.NewService(source, zerolog.Nop())
	require.NoError(t, catalogSvc.Refresh(context.Background()))

	bus := events.NewBus()
	sales := &apiSaleBackend{}
	session := checkout.NewSession(
		checkout.Operator{ID: "op-1", TerminalID: "t-1"},
		catalogSvc,
		sales,
		nil,
		bus,
		checkout.Config{},
		zerolog.Nop(),
		nil,
	)
	pipeline := scan.NewPipeline(catalogSvc, apiExternal{}, session, func(err error) bool {
		return errors.Is(err, cart.ErrOutOfStock)
	}, bus, zerolog.Nop())

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)

	handler := &httpapi.Handler{
		Session: session,
		Scan:    pipeline,
		Catalog: catalogSvc,
		Prefs:   store,
		Popup:   &httpapi.PopupBridge{Notices: bus, Logger: zerolog.Nop()},
		Logger:  zerolog.Nop(),
	}
	mux := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:       handler,
		Health:        health.Handler{Checker: healthyChecker{}},
		Notices:       bus,
		RequestLogger: obs.RequestLogger{Logger: zerolog.Nop()},
	})
	return &api{mux: mux, sales: sales, session: session}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *api) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestHealthEndpoints(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(t, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(t, http.MethodGet, "/api/v1/catalog/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCatalogProducts(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodGet, "/api/v1/catalog/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var products []catalog.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 1)
	require.Equal(t, "Mealie Meal", products[0].Name)
}

func TestCartFlowOverHTTP(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := a.do(t, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lines  []cart.Line `json:"lines"`
		Totals struct {
			Total decimal.Decimal `json:"total"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Lines, 1)
	require.True(t, body.Totals.Total.Equal(decimal.NewFromInt(50)))

	rec, _ = a.do(t, http.MethodPatch, "/api/v1/cart/items/p-1", `{"quantity":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodDelete, "/api/v1/cart/items/p-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, a.session.Lines())
}

func TestAddUnknownProduct(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"nope"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAddItemRequiresProductID(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestBeginMobileMoneyValidatesContact(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/payment/mobile/begin", `{"name":"","phone":"123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION", env.Error.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestScanResolveOverHTTP(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/scan", `{"code":"6009001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, "added", result.Outcome)
	require.Len(t, a.session.Lines(), 1)

	rec, _ = a.do(t, http.MethodPost, "/api/v1/scan/continue", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestScanUnknownCode(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/scan", `{"code":"0000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, "not_found", result.Outcome)
}

func TestHoldAndRecallOverHTTP(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)

	rec, _ := a.do(t, http.MethodPost, "/api/v1/sales/hold", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Empty(t, a.session.Lines())

	rec, env := a.do(t, http.MethodGet, "/api/v1/sales/held", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var heldSales []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &heldSales))
	require.Len(t, heldSales, 1)

	rec, _ = a.do(t, http.MethodPost, "/api/v1/sales/recall", `{"index":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, a.session.Lines(), 1)

	rec, env = a.do(t, http.MethodPost, "/api/v1/sales/recall", `{"index":0}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CART_NOT_EMPTY", env.Error.Code)
}

func TestCheckoutPaidOverHTTP(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	_, _ = a.do(t, http.MethodPost, "/api/v1/payment/method", `{"name":"Cash"}`)
	rec, _ := a.do(t, http.MethodPost, "/api/v1/cart/cash", `{"amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := a.do(t, http.MethodPost, "/api/v1/checkout/paid", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var record backend.SaleRecord
	require.NoError(t, json.Unmarshal(env.Data, &record))
	require.Equal(t, "sale-1", record.ID)
	require.Len(t, a.sales.submitted(), 1)
	require.Empty(t, a.session.Lines())
}

func TestDuplicateCheckoutDroppedQuietly(t *testing.T) {
	a := newAPI(t)
	a.sales.block = make(chan struct{})

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	_, _ = a.do(t, http.MethodPost, "/api/v1/payment/method", `{"name":"Cash"}`)
	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/cash", `{"amount":"100"}`)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec, _ := a.do(t, http.MethodPost, "/api/v1/checkout/paid", "")
		first <- rec
	}()

	require.Eventually(t, func() bool {
		return len(a.sales.submitted()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec, env := a.do(t, http.MethodPost, "/api/v1/checkout/paid", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Empty(t, env.Error.Code, "the duplicate press is dropped without an error body")
	require.Zero(t, rec.Body.Len())

	close(a.sales.block)
	require.Equal(t, http.StatusCreated, (<-first).Code)
	require.Len(t, a.sales.submitted(), 1, "only one submission reaches the backend")
}

func TestCheckoutEmptyCart(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/checkout/paid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CART_EMPTY", env.Error.Code)
}

func TestCheckoutInvoiceRequiresCustomer(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	rec, env := a.do(t, http.MethodPost, "/api/v1/checkout/invoice", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CUSTOMER_REQUIRED", env.Error.Code)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/customer", `{"customerId":"c-1"}`)
	rec, _ = a.do(t, http.MethodPost, "/api/v1/checkout/invoice", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, backend.SaleUnpaid, a.sales.submitted()[0].PaymentStatus)
}

func TestInsufficientCashRejected(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	_, _ = a.do(t, http.MethodPost, "/api/v1/payment/method", `{"name":"Cash"}`)
	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/cash", `{"amount":"20"}`)

	rec, env := a.do(t, http.MethodPost, "/api/v1/checkout/paid", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "INSUFFICIENT_CASH", env.Error.Code)
	require.Len(t, a.session.Lines(), 1, "a rejected checkout keeps the cart")
}

func TestPopupResultWithoutPendingWindow(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodPost, "/api/v1/payment/popup/result", `{"reference":"nope","status":"success"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestViewPreferenceRoundTrip(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(t, http.MethodGet, "/api/v1/prefs/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "grid", view["viewMode"])

	rec, _ = a.do(t, http.MethodPut, "/api/v1/prefs/view", `{"viewMode":"list"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, env = a.do(t, http.MethodGet, "/api/v1/prefs/view", "")
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "list", view["viewMode"])

	rec, env = a.do(t, http.MethodPut, "/api/v1/prefs/view", `{"viewMode":"carousel"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_VIEW", env.Error.Code)
}

func TestDiscountAppliedToTotals(t *testing.T) {
	a := newAPI(t)

	_, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", `{"productId":"p-1"}`)
	rec, env := a.do(t, http.MethodPost, "/api/v1/cart/discount", `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var totals struct {
		Total decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &totals))
	require.True(t, totals.Total.Equal(decimal.NewFromInt(40)))
}

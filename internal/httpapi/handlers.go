// Package httpapi exposes the terminal's checkout flows over HTTP for the
// register front-end.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/checkout"
	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/held"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/payment"
	"github.com/noah-isme/pos-terminal/internal/prefs"
	"github.com/noah-isme/pos-terminal/internal/scan"
)

// Handler wires the checkout session, scan pipeline and catalog to HTTP.
type Handler struct {
	Session *checkout.Session
	Scan    *scan.Pipeline
	Catalog *catalog.Service
	Prefs   *prefs.Store
	Popup   *PopupBridge
	Logger  zerolog.Logger
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	common.JSONError(w, status, code, err.Error(), nil)
}

func classify(err error) (code string, status int) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, cart.ErrOutOfStock):
		return "OUT_OF_STOCK", http.StatusConflict
	case errors.Is(err, cart.ErrExceedsStock):
		return "EXCEEDS_STOCK", http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrCartEmpty):
		return "CART_EMPTY", http.StatusBadRequest
	case errors.Is(err, checkout.ErrCartNotEmpty):
		return "CART_NOT_EMPTY", http.StatusConflict
	case errors.Is(err, checkout.ErrCustomerRequired):
		return "CUSTOMER_REQUIRED", http.StatusBadRequest
	case errors.Is(err, checkout.ErrInsufficientCash):
		return "INSUFFICIENT_CASH", http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrNoPaymentMethod):
		return "NO_PAYMENT_METHOD", http.StatusBadRequest
	case errors.Is(err, held.ErrNothingToHold):
		return "NOTHING_TO_HOLD", http.StatusBadRequest
	case errors.Is(err, held.ErrIndexOutOfRange):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, money.ErrInvalidAmount):
		return "INVALID_AMOUNT", http.StatusBadRequest
	case errors.Is(err, payment.ErrNoReference):
		return "NO_PAYMENT_SESSION", http.StatusConflict
	case errors.Is(err, payment.ErrChargeRejected):
		return "CHARGE_REJECTED", http.StatusBadGateway
	case errors.Is(err, backend.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return "UPSTREAM", http.StatusBadGateway
		}
		return "INTERNAL", http.StatusInternalServerError
	}
}

// Products returns the catalog snapshot's products.
func (h *Handler) Products(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Catalog.Products()})
}

// Customers returns the catalog snapshot's customers.
func (h *Handler) Customers(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Catalog.Customers()})
}

// Categories returns the catalog snapshot's categories.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Catalog.Categories()})
}

// RefreshCatalog reloads the snapshot from the backend.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cart returns the active sale: lines, totals and change due.
func (h *Handler) Cart(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"lines":     h.Session.Lines(),
			"totals":    h.Session.Totals(),
			"changeDue": h.Session.ChangeDue(),
		},
	})
}

// AddItem adds a product to the cart by id.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductID string `json:"productId" validate:"required"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	product, err := h.Catalog.ProductByID(payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Session.AddProduct(product); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Lines()})
}

// UpdateItem replaces a line's quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	var payload struct {
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	removed, err := h.Session.UpdateQuantity(productID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"removed": removed, "lines": h.Session.Lines()},
	})
}

// RemoveItem deletes a line outright.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.Session.RemoveItem(chi.URLParam(r, "productID"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart abandons the active sale.
func (h *Handler) ClearCart(w http.ResponseWriter, _ *http.Request) {
	h.Session.ClearSale()
	w.WriteHeader(http.StatusNoContent)
}

// SetDiscount applies a flat discount to the sale.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Session.SetDiscount(payload.Amount); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_DISCOUNT", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Totals()})
}

// SelectCustomer attaches a customer to the sale, or clears the selection
// when the id is empty.
func (h *Handler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerID string `json:"customerId"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Session.SelectCustomer(payload.CustomerID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Totals()})
}

// ToggleCredit switches the customer's store credit on or off.
func (h *Handler) ToggleCredit(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.ToggleStoreCredit(); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Totals()})
}

// SetCash records the cash amount tendered.
func (h *Handler) SetCash(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Session.SetCashReceived(payload.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"changeDue": h.Session.ChangeDue()},
	})
}

// Hold parks the active sale.
func (h *Handler) Hold(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Session.HoldSale()
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sale})
}

// Recall restores a held sale into the empty cart.
func (h *Handler) Recall(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Index int `json:"index"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Session.RecallSale(payload.Index); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Lines()})
}

// HeldSales lists parked sales, oldest first.
func (h *Handler) HeldSales(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.HeldSales()})
}

// Resolve runs a scanned code through the resolution pipeline.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.Scan.Resolve(r.Context(), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// ContinueScanning dismisses the post-scan choice and resumes scanning.
func (h *Handler) ContinueScanning(w http.ResponseWriter, _ *http.Request) {
	h.Scan.ContinueScanning()
	w.WriteHeader(http.StatusNoContent)
}

// ProceedToPayment dismisses the post-scan choice and moves to payment.
func (h *Handler) ProceedToPayment(w http.ResponseWriter, _ *http.Request) {
	h.Scan.ProceedToPayment()
	w.WriteHeader(http.StatusNoContent)
}

// SelectMethod records the payment method for the sale.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	method := h.Session.SelectPaymentMethod(payload.Name)
	common.JSON(w, http.StatusOK, map[string]any{"data": method})
}

// BeginMobileMoney obtains a gateway reference for the current total.
func (h *Handler) BeginMobileMoney(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"required,min=9"`
		Email string `json:"email" validate:"omitempty,email"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	sess, err := h.Session.BeginMobileMoneyPayment(r.Context(), backend.PaymentCustomer{
		Name:  payload.Name,
		Phone: payload.Phone,
		Email: payload.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]string{"reference": sess.Reference},
	})
}

// ConfirmCharge pushes the direct carrier charge and starts verification in
// the background. The outcome arrives on the notice stream.
func (h *Handler) ConfirmCharge(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if err := h.Session.ConfirmDirectCharge(context.Background()); err != nil {
			h.Logger.Error().Err(err).Msg("direct charge failed")
		}
	}()
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"status": "pending"}})
}

// ConfirmManual finalizes the sale on the operator's say-so.
func (h *Handler) ConfirmManual(w http.ResponseWriter, r *http.Request) {
	record, err := h.Session.ConfirmManual(r.Context())
	if errors.Is(err, checkout.ErrSubmissionInFlight) {
		// duplicate press while the first submission runs: drop it quietly
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

// PopupResult receives the embedded widget's terminal state.
func (h *Handler) PopupResult(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if h.Popup == nil || !h.Popup.Complete(payload.Reference, payload.Status) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no pending payment window", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelPayment stops verification polling for the active payment.
func (h *Handler) CancelPayment(w http.ResponseWriter, _ *http.Request) {
	h.Session.CancelPayment()
	w.WriteHeader(http.StatusNoContent)
}

// CheckoutPaid finalizes a fully paid sale.
func (h *Handler) CheckoutPaid(w http.ResponseWriter, r *http.Request) {
	record, err := h.Session.ProcessTransaction(r.Context(), checkout.SalePaid)
	if errors.Is(err, checkout.ErrSubmissionInFlight) {
		// duplicate press while the first submission runs: drop it quietly
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

// CheckoutInvoice records an unpaid sale against the selected customer.
func (h *Handler) CheckoutInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := h.Session.ProcessTransaction(r.Context(), checkout.SaleInvoice)
	if errors.Is(err, checkout.ErrSubmissionInFlight) {
		// duplicate press while the first submission runs: drop it quietly
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

// GetView returns the persisted product grid view mode.
func (h *Handler) GetView(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]string{"viewMode": string(h.Prefs.View())},
	})
}

// SetView persists the product grid view mode.
func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ViewMode string `json:"viewMode"`
	}
	if err := common.DecodeJSON(r, &payload, 0); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.Prefs.SetView(prefs.ViewMode(payload.ViewMode)); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

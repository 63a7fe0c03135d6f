package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"merchant_go/internal/domain"
	"merchant_go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type handler struct {
	svc    OrderService
	logger *slog.Logger
}

type createOrderRequest struct {
	Order struct {
		EmailAddress    string      `json:"emailAddress"`
		ShippingName    string      `json:"shippingName"`
		ShippingAddress string      `json:"shippingAddress"`
		Qty             json.Number `json:"qty"`
	} `json:"order"`
}

type createOrderResponse struct {
	Success    bool            `json:"success"`
	BchAddr    string          `json:"bchAddr"`
	BchPayment decimal.Decimal `json:"bchPayment"`
}

type checkPaymentResponse struct {
	Paid bool `json:"paid"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "malformed request body"})
		return
	}

	quote, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		EmailAddress:    req.Order.EmailAddress,
		ShippingName:    req.Order.ShippingName,
		ShippingAddress: req.Order.ShippingAddress,
		Qty:             req.Order.Qty.String(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		Success:    true,
		BchAddr:    quote.BchAddr,
		BchPayment: quote.PriceDue,
	})
}

func (h *handler) checkPayment(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "bchAddr")

	paid, err := h.svc.CheckPayment(r.Context(), addr)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkPaymentResponse{Paid: paid})
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case domain.IsDependency(err):
		h.logger.Error("upstream dependency failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("unhandled request error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package adaptor

import (
	"encoding/json"
	"net/http"

	"seat-reservation/internal/dto/request"
	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreatePaymentIntent handles POST /api/payments/create-intent (protected, owner only)
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreatePaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create payment intent")
		return
	}

	utils.ResponseSuccess(w, "Payment intent created", intent)
}

// ConfirmPayment handles POST /api/payments/confirm (protected, owner only)
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.ConfirmPayment(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "confirm payment")
		return
	}

	utils.ResponseSuccess(w, "Payment confirmed", booking)
}

// GetPaymentStatus handles GET /api/payments/status/{bookingId} (protected)
func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.service.GetPaymentStatus(r.Context(), actor, chi.URLParam(r, "bookingId"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment status")
		return
	}

	utils.ResponseSuccess(w, "success", status)
}

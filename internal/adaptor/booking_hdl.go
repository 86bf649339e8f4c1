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

type BookingHandler struct {
	reservation usecase.ReservationService
	service     usecase.BookingService
	log         *zap.Logger
}

func NewBookingHandler(reservation usecase.ReservationService, service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		reservation: reservation,
		service:     service,
		log:         log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings (protected)
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.reservation.Reserve(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Seats held, confirm payment before the hold expires", booking)
}

// ListBookings handles GET /api/bookings (protected, all bookings for admins)
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), actor, listRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetUserBookings handles GET /api/bookings/user/my-bookings (protected)
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	bookings, err := h.service.GetUserBookings(r.Context(), actor, listRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

func listRequest(r *http.Request) *request.ListBookingsRequest {
	query := r.URL.Query()
	return &request.ListBookingsRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status: query.Get("status"),
	}
}

// GetBooking handles GET /api/bookings/{id} (protected, owner or admin)
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CancelBooking handles DELETE /api/bookings/{id} (protected, owner or admin)
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}

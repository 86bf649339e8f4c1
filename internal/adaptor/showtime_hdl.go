package adaptor

import (
	"net/http"

	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ShowtimeHandler struct {
	service usecase.ShowtimeService
	log     *zap.Logger
}

func NewShowtimeHandler(service usecase.ShowtimeService, log *zap.Logger) *ShowtimeHandler {
	return &ShowtimeHandler{
		service: service,
		log:     log.With(zap.String("handler", "showtime")),
	}
}

// GetShowtime handles GET /api/showtimes/{id} (public)
func (h *ShowtimeHandler) GetShowtime(w http.ResponseWriter, r *http.Request) {
	showtime, err := h.service.GetShowtime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get showtime")
		return
	}

	utils.ResponseSuccess(w, "success", showtime)
}

// GetBookedSeats handles GET /api/showtimes/{id}/booked-seats (public)
func (h *ShowtimeHandler) GetBookedSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.service.GetSeatAvailability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booked seats")
		return
	}

	utils.ResponseSuccess(w, "success", seats)
}

package wire

import (
	"net/http"

	"seat-reservation/internal/adaptor"
	"seat-reservation/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireShowtime(r chi.Router, showtimeHandler *adaptor.ShowtimeHandler) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/showtimes/{id}", showtimeHandler.GetShowtime)
	r.Get("/api/showtimes/{id}/booked-seats", showtimeHandler.GetBookedSeats)
}

func wireAdmin(
	r chi.Router,
	adminHandler *adaptor.AdminHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		// POST /api/admin/sweeps - Expire overdue holds now
		r.Post("/sweeps", adminHandler.Sweep)

		// GET /api/admin/sweeper - Sweeper counters
		r.Get("/sweeper", adminHandler.SweeperStats)
	})
}

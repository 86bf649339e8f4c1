package wire

import (
	"net/http"

	"seat-reservation/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	auth func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(auth)

		// POST /api/bookings - Hold seats and create a pending booking
		r.With(limit).Post("/", bookingHandler.CreateBooking)

		// GET /api/bookings - Every booking for admins, own bookings otherwise
		r.Get("/", bookingHandler.ListBookings)

		// GET /api/bookings/user/my-bookings - Caller's booking history
		r.Get("/user/my-bookings", bookingHandler.GetUserBookings)

		// GET /api/bookings/{id} - Booking details (owner or admin)
		r.Get("/{id}", bookingHandler.GetBooking)

		// DELETE /api/bookings/{id} - Cancel and release seats (owner or admin)
		r.Delete("/{id}", bookingHandler.CancelBooking)
	})
}

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	auth func(http.Handler) http.Handler,
) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Use(auth)

		// POST /api/payments/create-intent - Open a provider intent for a pending booking
		r.Post("/create-intent", paymentHandler.CreatePaymentIntent)

		// POST /api/payments/confirm - Settle a pending booking
		r.Post("/confirm", paymentHandler.ConfirmPayment)

		// GET /api/payments/status/{bookingId}
		r.Get("/status/{bookingId}", paymentHandler.GetPaymentStatus)
	})
}

package adaptor

import (
	"seat-reservation/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth     *AuthHandler
	Booking  *BookingHandler
	Payment  *PaymentHandler
	Showtime *ShowtimeHandler
	Admin    *AdminHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(service.Auth, log),
		Booking:  NewBookingHandler(service.Reservation, service.Booking, log),
		Payment:  NewPaymentHandler(service.Payment, log),
		Showtime: NewShowtimeHandler(service.Showtime, log),
		Admin:    NewAdminHandler(service.Sweeper, log),
	}
}

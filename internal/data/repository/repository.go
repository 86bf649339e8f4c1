package repository

import (
	"seat-reservation/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Tx       database.TxManager
	User     UserRepository
	Session  SessionRepository
	Showtime ShowtimeRepository
	Seat     SeatRepository
	Booking  BookingRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Tx:       database.NewTxManager(db),
		User:     NewUserRepository(db, log),
		Session:  NewSessionRepository(db, log),
		Showtime: NewShowtimeRepository(db, log),
		Seat:     NewSeatRepository(db, log),
		Booking:  NewBookingRepository(db, log),
	}
}

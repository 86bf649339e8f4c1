package entity

import "github.com/google/uuid"

// BookingSeat is the seat snapshot taken at reservation time. Price never
// changes after the booking is created.
type BookingSeat struct {
	BookingID uuid.UUID `db:"booking_id"`
	SeatID    string    `db:"seat_id"`
	Row       string    `db:"seat_row"`
	Number    int       `db:"seat_number"`
	SeatType  string    `db:"seat_type"`
	Price     float64   `db:"price"`
}

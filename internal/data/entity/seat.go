package entity

import "github.com/google/uuid"

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
)

type Seat struct {
	ShowtimeID uuid.UUID  `db:"showtime_id"`
	SeatID     string     `db:"seat_id"`     // A1, A2, B1, etc.
	Row        string     `db:"seat_row"`    // A, B, C, etc.
	Number     int        `db:"seat_number"` // 1, 2, 3, etc.
	SeatType   string     `db:"seat_type"`
	Status     SeatStatus `db:"status"`
	BookingID  *uuid.UUID `db:"booking_id"`
}

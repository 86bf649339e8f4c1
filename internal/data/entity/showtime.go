package entity

import (
	"time"

	"github.com/google/uuid"
)

type PricingEntry struct {
	SeatType string  `db:"seat_type"`
	Price    float64 `db:"price"`
}

type Showtime struct {
	BaseNoDelete
	MovieID         uuid.UUID      `db:"movie_id"`
	TheaterID       uuid.UUID      `db:"theater_id"`
	ScreenNumber    int            `db:"screen_number"`
	StartTime       time.Time      `db:"start_time"`
	IsActive        bool           `db:"is_active"`
	TotalSeatCount  int            `db:"total_seat_count"`
	BookedSeatCount int            `db:"booked_seat_count"` // held + booked
	Pricing         []PricingEntry `db:"-"`
	Seats           []Seat         `db:"-"`
}

func (s *Showtime) Seat(seatID string) (*Seat, bool) {
	for i := range s.Seats {
		if s.Seats[i].SeatID == seatID {
			return &s.Seats[i], true
		}
	}
	return nil, false
}

func (s *Showtime) PriceFor(seatType string) (float64, bool) {
	for _, p := range s.Pricing {
		if p.SeatType == seatType {
			return p.Price, true
		}
	}
	return 0, false
}

func (s *Showtime) StatusCounts() map[SeatStatus]int {
	counts := map[SeatStatus]int{
		SeatStatusAvailable: 0,
		SeatStatusHeld:      0,
		SeatStatusBooked:    0,
	}
	for _, seat := range s.Seats {
		counts[seat.Status]++
	}
	return counts
}

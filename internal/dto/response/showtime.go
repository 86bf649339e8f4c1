package response

import (
	"time"

	"seat-reservation/internal/data/entity"
)

type PricingResponse struct {
	SeatType string  `json:"seat_type"`
	Price    float64 `json:"price"`
}

type SeatResponse struct {
	SeatID   string            `json:"seat_id"`
	Row      string            `json:"row"`
	Number   int               `json:"number"`
	SeatType string            `json:"seat_type"`
	Status   entity.SeatStatus `json:"status"`
}

type ShowtimeResponse struct {
	ID              string            `json:"id"`
	MovieID         string            `json:"movie_id"`
	TheaterID       string            `json:"theater_id"`
	ScreenNumber    int               `json:"screen_number"`
	StartTime       time.Time         `json:"start_time"`
	IsActive        bool              `json:"is_active"`
	TotalSeatCount  int               `json:"total_seat_count"`
	BookedSeatCount int               `json:"booked_seat_count"`
	AvailableSeats  int               `json:"available_seats"`
	Pricing         []PricingResponse `json:"pricing"`
	Seats           []SeatResponse    `json:"seats"`
}

// SeatAvailabilityResponse is the occupied-seat snapshot of a showtime. It
// may lag behind the seat map and is never used to decide a reservation.
type SeatAvailabilityResponse struct {
	ShowtimeID  string    `json:"showtime_id"`
	Booked      []string  `json:"booked"`
	Held        []string  `json:"held"`
	GeneratedAt time.Time `json:"generated_at"`
}

func ShowtimeToResponse(s *entity.Showtime) ShowtimeResponse {
	pricing := make([]PricingResponse, len(s.Pricing))
	for i, p := range s.Pricing {
		pricing[i] = PricingResponse{SeatType: p.SeatType, Price: p.Price}
	}

	seats := make([]SeatResponse, len(s.Seats))
	for i, seat := range s.Seats {
		seats[i] = SeatResponse{
			SeatID:   seat.SeatID,
			Row:      seat.Row,
			Number:   seat.Number,
			SeatType: seat.SeatType,
			Status:   seat.Status,
		}
	}

	return ShowtimeResponse{
		ID:              s.ID.String(),
		MovieID:         s.MovieID.String(),
		TheaterID:       s.TheaterID.String(),
		ScreenNumber:    s.ScreenNumber,
		StartTime:       s.StartTime,
		IsActive:        s.IsActive,
		TotalSeatCount:  s.TotalSeatCount,
		BookedSeatCount: s.BookedSeatCount,
		AvailableSeats:  s.TotalSeatCount - s.BookedSeatCount,
		Pricing:         pricing,
		Seats:           seats,
	}
}

func SeatAvailabilityToResponse(s *entity.Showtime, at time.Time) SeatAvailabilityResponse {
	resp := SeatAvailabilityResponse{
		ShowtimeID:  s.ID.String(),
		Booked:      []string{},
		Held:        []string{},
		GeneratedAt: at,
	}
	for _, seat := range s.Seats {
		switch seat.Status {
		case entity.SeatStatusBooked:
			resp.Booked = append(resp.Booked, seat.SeatID)
		case entity.SeatStatusHeld:
			resp.Held = append(resp.Held, seat.SeatID)
		}
	}
	return resp
}

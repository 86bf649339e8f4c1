package response

import (
	"time"

	"seat-reservation/internal/data/entity"
)

type BookingSeatResponse struct {
	SeatID   string  `json:"seat_id"`
	Row      string  `json:"row"`
	Number   int     `json:"number"`
	SeatType string  `json:"seat_type"`
	Price    float64 `json:"price"`
}

type BookingResponse struct {
	ID             string                `json:"id"`
	BookingCode    string                `json:"booking_code"`
	UserID         string                `json:"user_id"`
	ShowtimeID     string                `json:"showtime_id"`
	Seats          []BookingSeatResponse `json:"seats"`
	TotalSeatCount int                   `json:"total_seat_count"`
	TotalAmount    float64               `json:"total_amount"`
	BookingStatus  entity.BookingStatus  `json:"booking_status"`
	PaymentStatus  entity.PaymentStatus  `json:"payment_status"`
	PaymentID      *string               `json:"payment_id,omitempty"`
	ExpiresAt      time.Time             `json:"expires_at"`
	ConfirmedAt    *time.Time            `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

type PaymentStatusResponse struct {
	BookingID     string               `json:"booking_id"`
	BookingCode   string               `json:"booking_code"`
	BookingStatus entity.BookingStatus `json:"booking_status"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	PaymentID     *string              `json:"payment_id,omitempty"`
	Amount        float64              `json:"amount"`
	ExpiresAt     time.Time            `json:"expires_at"`
	ConfirmedAt   *time.Time           `json:"confirmed_at,omitempty"`
}

// PaymentIntentResponse hands the client what it needs to pay. The
// payment_intent_id goes back as payment_reference on confirm.
type PaymentIntentResponse struct {
	BookingID       string    `json:"booking_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	seats := make([]BookingSeatResponse, len(b.Seats))
	for i, s := range b.Seats {
		seats[i] = BookingSeatResponse{
			SeatID:   s.SeatID,
			Row:      s.Row,
			Number:   s.Number,
			SeatType: s.SeatType,
			Price:    s.Price,
		}
	}

	return BookingResponse{
		ID:             b.ID.String(),
		BookingCode:    b.BookingCode,
		UserID:         b.UserID.String(),
		ShowtimeID:     b.ShowtimeID.String(),
		Seats:          seats,
		TotalSeatCount: b.TotalSeatCount,
		TotalAmount:    b.TotalAmount,
		BookingStatus:  b.BookingStatus,
		PaymentStatus:  b.PaymentStatus,
		PaymentID:      b.PaymentID,
		ExpiresAt:      b.ExpiresAt,
		ConfirmedAt:    b.ConfirmedAt,
		CancelledAt:    b.CancelledAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func PaymentStatusToResponse(p *entity.PaymentSummary) PaymentStatusResponse {
	return PaymentStatusResponse{
		BookingID:     p.BookingID.String(),
		BookingCode:   p.BookingCode,
		BookingStatus: p.BookingStatus,
		PaymentStatus: p.PaymentStatus,
		PaymentID:     p.PaymentID,
		Amount:        p.Amount,
		ExpiresAt:     p.ExpiresAt,
		ConfirmedAt:   p.ConfirmedAt,
	}
}

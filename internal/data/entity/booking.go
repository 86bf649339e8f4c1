package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Active bookings are the only ones allowed to occupy seats.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	BaseNoDelete
	UserID         uuid.UUID     `db:"user_id"`
	ShowtimeID     uuid.UUID     `db:"showtime_id"`
	Seats          []BookingSeat `db:"-"`
	TotalSeatCount int           `db:"total_seat_count"`
	TotalAmount    float64       `db:"total_amount"`
	BookingStatus  BookingStatus `db:"booking_status"`
	PaymentStatus  PaymentStatus `db:"payment_status"`
	PaymentID      *string       `db:"payment_id"`
	BookingCode    string        `db:"booking_code"`
	ExpiresAt      time.Time     `db:"expires_at"`
	ConfirmedAt    *time.Time    `db:"confirmed_at"`
	CancelledAt    *time.Time    `db:"cancelled_at"`
}

func (b *Booking) BelongsTo(userID uuid.UUID) bool {
	return b.UserID == userID
}

func (b *Booking) IsTerminal() bool {
	return b.BookingStatus == BookingStatusCancelled || b.BookingStatus == BookingStatusExpired
}

// IsHoldExpired reports whether a pending booking has outlived its hold.
func (b *Booking) IsHoldExpired(now time.Time) bool {
	return b.BookingStatus == BookingStatusPending && !now.Before(b.ExpiresAt)
}

func (b *Booking) SeatIDs() []string {
	ids := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		ids[i] = s.SeatID
	}
	return ids
}

// Package event publishes booking lifecycle events after their transaction
// has committed. Delivery is best effort.
package event

import (
	"context"
	"time"

	"seat-reservation/internal/data/entity"
)

type Type string

const (
	BookingReserved  Type = "booking.reserved"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	BookingExpired   Type = "booking.expired"
	PaymentFailed    Type = "booking.payment_failed"
)

type BookingEvent struct {
	Type          Type                 `json:"type"`
	BookingID     string               `json:"booking_id"`
	BookingCode   string               `json:"booking_code"`
	UserID        string               `json:"user_id"`
	ShowtimeID    string               `json:"showtime_id"`
	SeatIDs       []string             `json:"seat_ids,omitempty"`
	TotalAmount   float64              `json:"total_amount"`
	BookingStatus entity.BookingStatus `json:"booking_status"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func NewBookingEvent(t Type, b *entity.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          t,
		BookingID:     b.ID.String(),
		BookingCode:   b.BookingCode,
		UserID:        b.UserID.String(),
		ShowtimeID:    b.ShowtimeID.String(),
		SeatIDs:       b.SeatIDs(),
		TotalAmount:   b.TotalAmount,
		BookingStatus: b.BookingStatus,
		PaymentStatus: b.PaymentStatus,
		OccurredAt:    at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt BookingEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

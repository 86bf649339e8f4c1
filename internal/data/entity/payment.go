package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentSummary is the payment view of a booking.
type PaymentSummary struct {
	BookingID     uuid.UUID
	BookingCode   string
	BookingStatus BookingStatus
	PaymentStatus PaymentStatus
	PaymentID     *string
	Amount        float64
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
}

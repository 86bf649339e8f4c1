// Package gateway holds the payment providers used to settle bookings.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnavailable wraps transport failures talking to a provider. The charge
// outcome is unknown and the caller may retry.
var ErrUnavailable = errors.New("payment gateway unavailable")

// PaymentGateway opens payment intents bound to a booking and authorizes the
// charge named by a client-supplied reference. A reference opened for one
// booking never settles another.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResult, error)
	AuthorizeCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Name() string
}

// Metadata keys stamped on every intent.
const (
	MetadataBookingID   = "booking_id"
	MetadataBookingCode = "booking_code"
	MetadataUserID      = "user_id"
)

type IntentRequest struct {
	BookingID   uuid.UUID
	BookingCode string
	UserID      uuid.UUID
	Amount      float64
	Currency    string
}

// IntentResult carries what the client needs to complete the payment. Amount
// is in minor units.
type IntentResult struct {
	Reference    string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

type ChargeRequest struct {
	BookingID   uuid.UUID
	BookingCode string
	Amount      float64
	Currency    string
	Reference   string
}

// ChargeResult is a definite answer from the provider. Success false means
// declined.
type ChargeResult struct {
	Success           bool
	ExternalReference string
	Status            string
	FailureCode       string
	FailureReason     string
}

// toMinorUnits converts an amount to the smallest currency unit.
func toMinorUnits(amount float64) int64 {
	if amount < 0 {
		return -int64(-amount*100 + 0.5)
	}
	return int64(amount*100 + 0.5)
}

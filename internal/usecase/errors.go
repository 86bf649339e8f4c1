package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindInactive         ErrorKind = "inactive"
	KindSeatsUnavailable ErrorKind = "seats_unavailable"
	KindConflict         ErrorKind = "conflict"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindAlreadyCancelled ErrorKind = "already_cancelled"
	KindAlreadyConfirmed ErrorKind = "already_confirmed"
	KindInvalidState     ErrorKind = "invalid_state"
	KindHoldExpired      ErrorKind = "hold_expired"
	KindInvalidSeatType  ErrorKind = "invalid_seat_type"
	KindValidation       ErrorKind = "validation_failed"
	KindPaymentDeclined  ErrorKind = "payment_declined"
	KindPaymentGateway   ErrorKind = "payment_unavailable"
	KindStorage          ErrorKind = "storage_error"
)

// ReservationError is returned by every service operation. Seats lists the
// offending seat ids for seat-related kinds; Fields carries validation
// messages keyed by field name.
type ReservationError struct {
	Kind    ErrorKind
	Message string
	Seats   []string
	Fields  map[string]string
	Err     error
}

func (e *ReservationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// Is matches any ReservationError of the same kind, so callers can test
// with errors.Is(err, usecase.ErrConflict).
func (e *ReservationError) Is(target error) bool {
	t, ok := target.(*ReservationError)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the same request may succeed if repeated.
func (e *ReservationError) Retryable() bool {
	switch e.Kind {
	case KindStorage, KindConflict, KindPaymentGateway:
		return true
	}
	return false
}

// Sentinels for errors.Is
var (
	ErrNotFound         = &ReservationError{Kind: KindNotFound}
	ErrInactive         = &ReservationError{Kind: KindInactive}
	ErrSeatsUnavailable = &ReservationError{Kind: KindSeatsUnavailable}
	ErrConflict         = &ReservationError{Kind: KindConflict}
	ErrUnauthorized     = &ReservationError{Kind: KindUnauthorized}
	ErrUnauthenticated  = &ReservationError{Kind: KindUnauthenticated}
	ErrAlreadyCancelled = &ReservationError{Kind: KindAlreadyCancelled}
	ErrAlreadyConfirmed = &ReservationError{Kind: KindAlreadyConfirmed}
	ErrInvalidState     = &ReservationError{Kind: KindInvalidState}
	ErrHoldExpired      = &ReservationError{Kind: KindHoldExpired}
	ErrInvalidSeatType  = &ReservationError{Kind: KindInvalidSeatType}
	ErrValidation       = &ReservationError{Kind: KindValidation}
	ErrPaymentDeclined  = &ReservationError{Kind: KindPaymentDeclined}
	ErrPaymentGateway   = &ReservationError{Kind: KindPaymentGateway}
	ErrStorage          = &ReservationError{Kind: KindStorage}
)

func newError(kind ErrorKind, msg string) *ReservationError {
	return &ReservationError{Kind: kind, Message: msg}
}

func notFound(what, id string) *ReservationError {
	return newError(KindNotFound, fmt.Sprintf("%s %s not found", what, id))
}

func seatsUnavailable(seats []string) *ReservationError {
	return &ReservationError{
		Kind:    KindSeatsUnavailable,
		Message: "some seats are not available",
		Seats:   seats,
	}
}

func validationFailed(fields map[string]string) *ReservationError {
	return &ReservationError{
		Kind:    KindValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// storageError wraps a fault from the store. An error that already is a
// ReservationError passes through untouched.
func storageError(op string, err error) error {
	var re *ReservationError
	if errors.As(err, &re) {
		return err
	}
	return &ReservationError{Kind: KindStorage, Message: op, Err: err}
}

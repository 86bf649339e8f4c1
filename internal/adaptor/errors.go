package adaptor

import (
	"errors"
	"net/http"

	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"go.uber.org/zap"
)

func statusFor(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindUnauthorized:
		return http.StatusForbidden
	case usecase.KindUnauthenticated:
		return http.StatusUnauthorized
	case usecase.KindStorage, usecase.KindPaymentGateway:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// seatsKey names the list of offending seats in the errors payload.
func seatsKey(kind usecase.ErrorKind) string {
	switch kind {
	case usecase.KindInvalidSeatType:
		return "invalid_seats"
	case usecase.KindConflict:
		return "conflicting_seats"
	default:
		return "unavailable_seats"
	}
}

// handleServiceError maps a service error onto the response envelope.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var re *usecase.ReservationError
	if !errors.As(err, &re) {
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	code := statusFor(re.Kind)
	if code >= http.StatusInternalServerError {
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation),
			zap.String("kind", string(re.Kind)))
		utils.ResponseError(w, code, string(re.Kind), "Internal server error, retry later", nil)
		return
	}

	log.Warn(operation+" failed",
		zap.String("kind", string(re.Kind)),
		zap.String("message", re.Message),
		zap.String("operation", operation))

	var details any
	switch {
	case len(re.Fields) > 0:
		details = re.Fields
	case len(re.Seats) > 0:
		details = map[string][]string{seatsKey(re.Kind): re.Seats}
	}

	utils.ResponseError(w, code, string(re.Kind), re.Message, details)
}

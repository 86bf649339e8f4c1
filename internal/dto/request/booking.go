package request

// CreateBookingRequest caps the seat count through the reservation
// service option, not a tag.
type CreateBookingRequest struct {
	ShowtimeID string   `json:"showtime_id" validate:"required,uuid4"`
	SeatIDs    []string `json:"seat_ids" validate:"required,min=1,unique,dive,required,seatid"`
}

type CreatePaymentIntentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid4"`
}

type ConfirmPaymentRequest struct {
	BookingID        string `json:"booking_id" validate:"required,uuid4"`
	PaymentReference string `json:"payment_reference" validate:"required,max=255"`
}

type ListBookingsRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=pending confirmed cancelled expired"`
}

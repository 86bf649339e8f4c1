package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBookingStatusIsActive(t *testing.T) {
	assert.True(t, BookingStatusPending.IsActive())
	assert.True(t, BookingStatusConfirmed.IsActive())
	assert.False(t, BookingStatusCancelled.IsActive())
	assert.False(t, BookingStatusExpired.IsActive())
}

func TestBookingHoldExpiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	b := &Booking{BookingStatus: BookingStatusPending, ExpiresAt: now.Add(10 * time.Minute)}

	assert.False(t, b.IsHoldExpired(now))
	assert.False(t, b.IsHoldExpired(now.Add(10*time.Minute-time.Second)))
	assert.True(t, b.IsHoldExpired(now.Add(10*time.Minute)))

	b.BookingStatus = BookingStatusConfirmed
	assert.False(t, b.IsHoldExpired(now.Add(time.Hour)))
}

func TestBookingAccessors(t *testing.T) {
	owner := uuid.New()
	b := &Booking{
		UserID:        owner,
		BookingStatus: BookingStatusCancelled,
		Seats:         []BookingSeat{{SeatID: "A1"}, {SeatID: "A2"}},
	}

	assert.True(t, b.BelongsTo(owner))
	assert.False(t, b.BelongsTo(uuid.New()))
	assert.True(t, b.IsTerminal())
	assert.Equal(t, []string{"A1", "A2"}, b.SeatIDs())
}

func TestShowtimeLookups(t *testing.T) {
	st := &Showtime{
		Pricing: []PricingEntry{{SeatType: "standard", Price: 150}, {SeatType: "premium", Price: 250.5}},
		Seats: []Seat{
			{SeatID: "A1", SeatType: "standard", Status: SeatStatusAvailable},
			{SeatID: "A2", SeatType: "standard", Status: SeatStatusHeld},
			{SeatID: "C1", SeatType: "premium", Status: SeatStatusBooked},
		},
	}

	seat, ok := st.Seat("A2")
	assert.True(t, ok)
	assert.Equal(t, SeatStatusHeld, seat.Status)
	_, ok = st.Seat("Z9")
	assert.False(t, ok)

	price, ok := st.PriceFor("premium")
	assert.True(t, ok)
	assert.Equal(t, 250.5, price)
	_, ok = st.PriceFor("recliner")
	assert.False(t, ok)

	assert.Equal(t, map[SeatStatus]int{
		SeatStatusAvailable: 1,
		SeatStatusHeld:      1,
		SeatStatusBooked:    1,
	}, st.StatusCounts())
}

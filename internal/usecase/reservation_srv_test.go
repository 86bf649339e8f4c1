package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/request"
	"seat-reservation/internal/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, event.BookingEvent) error {
	return errors.New("broker down")
}
func (failingPublisher) Close() error { return nil }

func reserveRequest(showtimeID uuid.UUID, seats ...string) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{ShowtimeID: showtimeID.String(), SeatIDs: seats}
}

func seatStatus(t *testing.T, f *fixture, seatID string) entity.SeatStatus {
	t.Helper()
	seat, ok := f.store.seatState(f.showtime).Seat(seatID)
	require.True(t, ok, seatID)
	return seat.Status
}

func requireKind(t *testing.T, err error, kind ErrorKind) *ReservationError {
	t.Helper()
	var re *ReservationError
	require.ErrorAs(t, err, &re)
	require.Equal(t, kind, re.Kind, re.Error())
	return re
}

func TestReserve_HoldsSeatsAndCreatesPendingBooking(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options()...)

	resp, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "A1", "A2"))
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusPending, resp.BookingStatus)
	assert.Equal(t, entity.PaymentStatusPending, resp.PaymentStatus)
	assert.Equal(t, 300.0, resp.TotalAmount)
	assert.Equal(t, 2, resp.TotalSeatCount)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), resp.ExpiresAt)
	assert.Regexp(t, `^BMS[0-9]+[0-9A-Z]{9}$`, resp.BookingCode)

	assert.Equal(t, entity.SeatStatusHeld, seatStatus(t, f, "A1"))
	assert.Equal(t, entity.SeatStatusHeld, seatStatus(t, f, "A2"))
	assert.Equal(t, 2, f.store.seatState(f.showtime).BookedSeatCount)
	assert.Equal(t, []event.Type{event.BookingReserved}, f.events.types())
	f.assertConsistent(t)
}

func TestReserve_SnapshotsSeatTypeAndPrice(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options()...)

	resp, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "C1", "A3"))
	require.NoError(t, err)
	assert.Equal(t, 400.5, resp.TotalAmount)

	id := uuid.MustParse(resp.ID)

	// Repricing the showtime later must not touch the booking
	f.store.mu.Lock()
	f.store.showtimes[f.showtime].Pricing[1].Price = 999
	f.store.mu.Unlock()

	stored := f.store.booking(id)
	require.Len(t, stored.Seats, 2)
	assert.Equal(t, "premium", stored.Seats[0].SeatType)
	assert.Equal(t, 250.5, stored.Seats[0].Price)
	assert.Equal(t, "C", stored.Seats[0].Row)
	assert.Equal(t, 1, stored.Seats[0].Number)
	assert.Equal(t, 150.0, stored.Seats[1].Price)
	assert.Equal(t, 400.5, stored.TotalAmount)
}

func TestReserve_RejectsUnavailableSeatsListingAll(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options()...)
	ctx := context.Background()

	_, err := srv.Reserve(ctx, f.other, reserveRequest(f.showtime, "A1", "B2"))
	require.NoError(t, err)

	_, err = srv.Reserve(ctx, f.customer, reserveRequest(f.showtime, "A1", "A3", "B2", "Z9"))
	re := requireKind(t, err, KindSeatsUnavailable)
	assert.ElementsMatch(t, []string{"A1", "B2", "Z9"}, re.Seats)
	assert.ErrorIs(t, err, ErrSeatsUnavailable)

	assert.Equal(t, entity.SeatStatusAvailable, seatStatus(t, f, "A3"))
	assert.Equal(t, 1, f.store.bookingCount())
	f.assertConsistent(t)
}

func TestReserve_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		req   func(f *fixture) *request.CreateBookingRequest
		kind  ErrorKind
	}{
		{
			name: "unknown showtime",
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(uuid.New(), "A1") },
			kind: KindNotFound,
		},
		{
			name: "inactive showtime",
			setup: func(f *fixture) {
				f.store.showtimes[f.showtime].IsActive = false
			},
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime, "A1") },
			kind: KindInactive,
		},
		{
			name: "empty seat list",
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime) },
			kind: KindValidation,
		},
		{
			name: "duplicate seat ids",
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime, "A1", "A1") },
			kind: KindValidation,
		},
		{
			name: "malformed seat id",
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime, "a-1") },
			kind: KindValidation,
		},
		{
			name: "malformed showtime id",
			req: func(f *fixture) *request.CreateBookingRequest {
				return &request.CreateBookingRequest{ShowtimeID: "nope", SeatIDs: []string{"A1"}}
			},
			kind: KindValidation,
		},
		{
			name: "seat type without price",
			setup: func(f *fixture) {
				f.store.showtimes[f.showtime].Pricing = f.store.showtimes[f.showtime].Pricing[:1]
			},
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime, "A1", "C2") },
			kind: KindInvalidSeatType,
		},
		{
			name: "storage failure",
			setup: func(f *fixture) {
				f.store.findErr = errors.New("connection refused")
			},
			req:  func(f *fixture) *request.CreateBookingRequest { return reserveRequest(f.showtime, "A1") },
			kind: KindStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			srv := NewReservationService(f.repo, f.log, f.options()...)

			_, err := srv.Reserve(context.Background(), f.customer, tt.req(f))
			requireKind(t, err, tt.kind)

			assert.Zero(t, f.store.bookingCount())
			assert.Empty(t, f.events.types())
			f.store.findErr = nil
			f.assertConsistent(t)
		})
	}
}

func TestReserve_MaxSeatsOption(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options(WithMaxSeats(2))...)

	_, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "A1", "A2", "A3"))
	re := requireKind(t, err, KindValidation)
	assert.Contains(t, re.Fields, "seat_ids")
}

func TestReserve_CreateFailureRollsBackHold(t *testing.T) {
	f := newFixture(t)
	f.store.createErrs = []error{errors.New("disk full")}
	srv := NewReservationService(f.repo, f.log, f.options()...)

	_, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "A1", "A2"))
	requireKind(t, err, KindStorage)

	assert.Equal(t, entity.SeatStatusAvailable, seatStatus(t, f, "A1"))
	assert.Equal(t, entity.SeatStatusAvailable, seatStatus(t, f, "A2"))
	assert.Zero(t, f.store.seatState(f.showtime).BookedSeatCount)
	assert.Zero(t, f.store.bookingCount())
	assert.Empty(t, f.events.types())
	f.assertConsistent(t)
}

func TestReserve_RetriesBookingCodeCollision(t *testing.T) {
	f := newFixture(t)
	f.store.createErrs = []error{repository.ErrDuplicateBookingCode, repository.ErrDuplicateBookingCode}

	n := 0
	gen := func(time.Time) (string, error) {
		n++
		return fmt.Sprintf("BMS1700000000000CODE%05d", n), nil
	}
	srv := NewReservationService(f.repo, f.log, f.options(WithCodeGenerator(gen))...)

	resp, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "A1"))
	require.NoError(t, err)
	assert.Equal(t, "BMS1700000000000CODE00003", resp.BookingCode)
	assert.Equal(t, 3, n)
}

func TestReserve_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	gen := func(time.Time) (string, error) { return "BMS1SAMECODE00", nil }
	srv := NewReservationService(f.repo, f.log, f.options(WithCodeGenerator(gen))...)
	ctx := context.Background()

	_, err := srv.Reserve(ctx, f.customer, reserveRequest(f.showtime, "A1"))
	require.NoError(t, err)

	_, err = srv.Reserve(ctx, f.customer, reserveRequest(f.showtime, "A2"))
	requireKind(t, err, KindStorage)
	assert.Equal(t, entity.SeatStatusAvailable, seatStatus(t, f, "A2"))
	f.assertConsistent(t)
}

func TestReserve_ConcurrentRequestsForSameSeat(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options()...)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		losers  []error
		barrier = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-barrier
			actor := f.customer
			actor.UserID = uuid.New()
			_, err := srv.Reserve(context.Background(), actor, reserveRequest(f.showtime, "A1", "A2"))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			losers = append(losers, err)
		}()
	}
	close(barrier)
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range losers {
		var re *ReservationError
		require.ErrorAs(t, err, &re)
		assert.Contains(t, []ErrorKind{KindSeatsUnavailable, KindConflict}, re.Kind)
		assert.Contains(t, re.Seats, "A1")
	}

	assert.Equal(t, 1, f.store.bookingCount())
	assert.Equal(t, 2, f.store.seatState(f.showtime).BookedSeatCount)
	f.assertConsistent(t)
}

func TestReserve_OverlappingRequestsNeverShareASeat(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, f.options()...)

	requests := [][]string{
		{"A1", "A2"}, {"A2", "A3"}, {"A3", "A4"}, {"A4", "A5"},
		{"B1", "B2"}, {"B2", "C1"}, {"C1", "C2"}, {"C2", "C3"},
	}

	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(seats []string) {
			defer wg.Done()
			actor := f.customer
			actor.UserID = uuid.New()
			_, _ = srv.Reserve(context.Background(), actor, reserveRequest(f.showtime, seats...))
		}(requests[i])
	}
	wg.Wait()

	f.assertConsistent(t)

	// Every held seat belongs to exactly the booking that lists it
	s := f.store.seatState(f.showtime)
	for _, seat := range s.Seats {
		if seat.BookingID == nil {
			continue
		}
		b := f.store.booking(*seat.BookingID)
		assert.Contains(t, b.SeatIDs(), seat.SeatID)
	}
}

func TestReserve_EventFailureDoesNotFailReservation(t *testing.T) {
	f := newFixture(t)
	srv := NewReservationService(f.repo, f.log, append(f.options(), WithPublisher(failingPublisher{}))...)

	_, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "B1"))
	require.NoError(t, err)
	assert.Equal(t, entity.SeatStatusHeld, seatStatus(t, f, "B1"))
}

// racingSeats lets a rival writer take seats between the availability
// check and the conditional hold.
type racingSeats struct {
	repository.SeatRepository
	take []string
}

func (r racingSeats) Hold(ctx context.Context, showtimeID, bookingID uuid.UUID, seatIDs []string) ([]string, error) {
	if _, err := r.SeatRepository.Hold(ctx, showtimeID, uuid.New(), r.take); err != nil {
		return nil, err
	}
	return r.SeatRepository.Hold(ctx, showtimeID, bookingID, seatIDs)
}

func TestReserve_ConflictNamesOnlyLostSeats(t *testing.T) {
	f := newFixture(t)
	f.repo.Seat = racingSeats{SeatRepository: f.repo.Seat, take: []string{"A2"}}
	srv := NewReservationService(f.repo, f.log, f.options()...)

	_, err := srv.Reserve(context.Background(), f.customer, reserveRequest(f.showtime, "A1", "A2", "A3"))

	re := requireKind(t, err, KindConflict)
	assert.Equal(t, []string{"A2"}, re.Seats)
	assert.True(t, re.Retryable())

	// The failed unit rolled back, including the partial hold
	for _, id := range []string{"A1", "A2", "A3"} {
		assert.Equal(t, entity.SeatStatusAvailable, seatStatus(t, f, id), id)
	}
	assert.Zero(t, f.store.seatState(f.showtime).BookedSeatCount)
	assert.Zero(t, f.store.bookingCount())
	assert.Empty(t, f.events.types())
}

func TestMissingSeats(t *testing.T) {
	assert.Equal(t, []string{"A1", "A3"}, missing([]string{"A1", "A2", "A3"}, []string{"A2"}))
	assert.Nil(t, missing([]string{"A1"}, []string{"A1"}))
}

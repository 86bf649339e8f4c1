package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for Postgres. Transactions are
// serialized and roll back to a snapshot when fn fails; the conditional
// updates mirror the WHERE clauses of the SQL repositories.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users     map[uuid.UUID]*entity.User
	sessions  map[uuid.UUID]*entity.Session
	showtimes map[uuid.UUID]*entity.Showtime
	bookings  map[uuid.UUID]*entity.Booking

	// createErrs are returned by successive Booking.Create calls
	createErrs []error
	// failExpire makes Expire fail for the listed bookings
	failExpire map[uuid.UUID]bool
	findErr    error
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[uuid.UUID]*entity.User),
		sessions:   make(map[uuid.UUID]*entity.Session),
		showtimes:  make(map[uuid.UUID]*entity.Showtime),
		bookings:   make(map[uuid.UUID]*entity.Booking),
		failExpire: make(map[uuid.UUID]bool),
	}
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Tx:       memTx{m},
		User:     memUsers{m},
		Session:  memSessions{m},
		Showtime: memShowtimes{m},
		Seat:     memSeats{m},
		Booking:  memBookings{m},
	}
}

func copyShowtime(s *entity.Showtime) *entity.Showtime {
	c := *s
	c.Pricing = slices.Clone(s.Pricing)
	c.Seats = make([]entity.Seat, len(s.Seats))
	for i, seat := range s.Seats {
		c.Seats[i] = seat
		if seat.BookingID != nil {
			id := *seat.BookingID
			c.Seats[i].BookingID = &id
		}
	}
	return &c
}

func copyBooking(b *entity.Booking) *entity.Booking {
	c := *b
	c.Seats = slices.Clone(b.Seats)
	return &c
}

// seatState returns a copy of the showtime as currently stored.
func (m *memStore) seatState(id uuid.UUID) *entity.Showtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyShowtime(m.showtimes[id])
}

func (m *memStore) booking(id uuid.UUID) *entity.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	return copyBooking(b)
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type memTx struct{ m *memStore }

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.m.txMu.Lock()
	defer t.m.txMu.Unlock()

	t.m.mu.Lock()
	showtimes := make(map[uuid.UUID]*entity.Showtime, len(t.m.showtimes))
	for id, s := range t.m.showtimes {
		showtimes[id] = copyShowtime(s)
	}
	bookings := make(map[uuid.UUID]*entity.Booking, len(t.m.bookings))
	for id, b := range t.m.bookings {
		bookings[id] = copyBooking(b)
	}
	t.m.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.m.mu.Lock()
		t.m.showtimes = showtimes
		t.m.bookings = bookings
		t.m.mu.Unlock()
		return err
	}
	return nil
}

type memUsers struct{ m *memStore }

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r memUsers) find(match func(*entity.User) bool) *entity.User {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email }), nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username }), nil
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(_ context.Context, s *entity.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c := *s
	r.m.sessions[s.Token] = &c
	return nil
}

func (r memSessions) FindValidSession(_ context.Context, token uuid.UUID) (*entity.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[token]
	if !ok || s.RevokedAt != nil || !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r memSessions) Revoke(_ context.Context, token uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[token]
	if !ok || s.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

type memShowtimes struct{ m *memStore }

func (r memShowtimes) FindByID(_ context.Context, id uuid.UUID) (*entity.Showtime, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.findErr != nil {
		return nil, r.m.findErr
	}
	s, ok := r.m.showtimes[id]
	if !ok {
		return nil, nil
	}
	return copyShowtime(s), nil
}

func (r memShowtimes) FindPricing(_ context.Context, id uuid.UUID) ([]entity.PricingEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.showtimes[id]
	if !ok {
		return nil, nil
	}
	return slices.Clone(s.Pricing), nil
}

type memSeats struct{ m *memStore }

func (r memSeats) Hold(_ context.Context, showtimeID, bookingID uuid.UUID, seatIDs []string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.showtimes[showtimeID]
	var held []string
	for i := range s.Seats {
		seat := &s.Seats[i]
		if slices.Contains(seatIDs, seat.SeatID) && seat.Status == entity.SeatStatusAvailable {
			id := bookingID
			seat.Status = entity.SeatStatusHeld
			seat.BookingID = &id
			held = append(held, seat.SeatID)
		}
	}
	s.BookedSeatCount += len(held)
	return held, nil
}

func (r memSeats) Book(_ context.Context, showtimeID, bookingID uuid.UUID) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.showtimes[showtimeID]
	changed := 0
	for i := range s.Seats {
		seat := &s.Seats[i]
		if seat.BookingID != nil && *seat.BookingID == bookingID && seat.Status == entity.SeatStatusHeld {
			seat.Status = entity.SeatStatusBooked
			changed++
		}
	}
	return changed, nil
}

func (r memSeats) Release(_ context.Context, showtimeID, bookingID uuid.UUID, from ...entity.SeatStatus) (int, error) {
	if len(from) == 0 {
		from = []entity.SeatStatus{entity.SeatStatusHeld, entity.SeatStatusBooked}
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.showtimes[showtimeID]
	changed := 0
	for i := range s.Seats {
		seat := &s.Seats[i]
		if seat.BookingID != nil && *seat.BookingID == bookingID && slices.Contains(from, seat.Status) {
			seat.Status = entity.SeatStatusAvailable
			seat.BookingID = nil
			changed++
		}
	}
	s.BookedSeatCount -= changed
	return changed, nil
}

type memBookings struct{ m *memStore }

func (r memBookings) Create(_ context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if len(r.m.createErrs) > 0 {
		err := r.m.createErrs[0]
		r.m.createErrs = r.m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range r.m.bookings {
		if existing.BookingCode == b.BookingCode {
			return repository.ErrDuplicateBookingCode
		}
	}
	r.m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r memBookings) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(b), nil
}

func (r memBookings) byUser(userID uuid.UUID, status string) []*entity.Booking {
	return r.matching(func(b *entity.Booking) bool {
		return b.UserID == userID && (status == "" || string(b.BookingStatus) == status)
	})
}

func (r memBookings) matching(keep func(*entity.Booking) bool) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		if keep(b) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memBookings) FindByUserID(_ context.Context, userID uuid.UUID, status string, limit, offset int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	all := r.byUser(userID, status)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memBookings) CountByUserID(_ context.Context, userID uuid.UUID, status string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.byUser(userID, status))), nil
}

func (r memBookings) byStatus(status string) []*entity.Booking {
	return r.matching(func(b *entity.Booking) bool {
		return status == "" || string(b.BookingStatus) == status
	})
}

func (r memBookings) FindAll(_ context.Context, status string, limit, offset int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	all := r.byStatus(status)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memBookings) CountAll(_ context.Context, status string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.byStatus(status))), nil
}

func (r memBookings) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		if b.BookingStatus == entity.BookingStatusPending && !b.ExpiresAt.After(now) {
			c := copyBooking(b)
			c.Seats = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memBookings) transition(id uuid.UUID, allowed func(*entity.Booking) bool, apply func(*entity.Booking)) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok || !allowed(b) {
		return false, nil
	}
	apply(b)
	return true, nil
}

func (r memBookings) Confirm(_ context.Context, id uuid.UUID, paymentID string, at time.Time) (bool, error) {
	r.m.mu.Lock()
	for otherID, b := range r.m.bookings {
		if otherID != id && b.PaymentID != nil && *b.PaymentID == paymentID {
			r.m.mu.Unlock()
			return false, repository.ErrDuplicatePaymentID
		}
	}
	r.m.mu.Unlock()
	return r.transition(id,
		func(b *entity.Booking) bool {
			return b.BookingStatus == entity.BookingStatusPending && b.ExpiresAt.After(at)
		},
		func(b *entity.Booking) {
			b.BookingStatus = entity.BookingStatusConfirmed
			b.PaymentStatus = entity.PaymentStatusCompleted
			b.PaymentID = &paymentID
			b.ConfirmedAt = &at
			b.UpdatedAt = at
		})
}

func (r memBookings) MarkPaymentFailed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id,
		func(b *entity.Booking) bool { return b.BookingStatus == entity.BookingStatusPending },
		func(b *entity.Booking) {
			b.PaymentStatus = entity.PaymentStatusFailed
			b.UpdatedAt = at
		})
}

func (r memBookings) Cancel(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id,
		func(b *entity.Booking) bool { return b.BookingStatus.IsActive() },
		func(b *entity.Booking) {
			b.BookingStatus = entity.BookingStatusCancelled
			b.CancelledAt = &at
			b.UpdatedAt = at
		})
}

func (r memBookings) Expire(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.m.mu.Lock()
	fail := r.m.failExpire[id]
	r.m.mu.Unlock()
	if fail {
		return false, fmt.Errorf("expire booking %s: %w", id, errors.New("connection reset"))
	}
	return r.transition(id,
		func(b *entity.Booking) bool {
			return b.BookingStatus == entity.BookingStatusPending && !b.ExpiresAt.After(now)
		},
		func(b *entity.Booking) {
			b.BookingStatus = entity.BookingStatusExpired
			b.UpdatedAt = now
		})
}

// fixture

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memStore
	repo     *repository.Repository
	clock    *clock
	events   *recordingPublisher
	showtime uuid.UUID
	customer utils.Actor
	other    utils.Actor
	admin    utils.Actor
	log      *zap.Logger
}

// newFixture seeds an active showtime with rows A and B (standard, 6 seats
// each) and row C (premium, 4 seats), priced at 150.00 and 250.50.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		clock:    newClock(),
		events:   &recordingPublisher{},
		showtime: uuid.New(),
		customer: utils.Actor{UserID: uuid.New(), Role: string(entity.RoleCustomer)},
		other:    utils.Actor{UserID: uuid.New(), Role: string(entity.RoleCustomer)},
		admin:    utils.Actor{UserID: uuid.New(), Role: string(entity.RoleAdmin)},
		log:      zap.NewNop(),
	}
	f.repo = f.store.repository()

	s := &entity.Showtime{
		BaseNoDelete: entity.BaseNoDelete{ID: f.showtime, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()},
		MovieID:      uuid.New(),
		TheaterID:    uuid.New(),
		ScreenNumber: 1,
		StartTime:    f.clock.Now().Add(3 * time.Hour),
		IsActive:     true,
		Pricing: []entity.PricingEntry{
			{SeatType: "standard", Price: 150},
			{SeatType: "premium", Price: 250.5},
		},
	}
	addRow := func(row, seatType string, n int) {
		for i := 1; i <= n; i++ {
			s.Seats = append(s.Seats, entity.Seat{
				ShowtimeID: f.showtime,
				SeatID:     fmt.Sprintf("%s%d", row, i),
				Row:        row,
				Number:     i,
				SeatType:   seatType,
				Status:     entity.SeatStatusAvailable,
			})
		}
	}
	addRow("A", "standard", 6)
	addRow("B", "standard", 6)
	addRow("C", "premium", 4)
	s.TotalSeatCount = len(s.Seats)
	f.store.showtimes[s.ID] = s

	return f
}

func (f *fixture) options(extra ...Option) []Option {
	return append([]Option{
		WithClock(f.clock.Now),
		WithPublisher(f.events),
		WithHoldDuration(10 * time.Minute),
	}, extra...)
}

// assertConsistent checks that the stored counter matches the seat map and
// that every occupied seat points at an active booking.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()

	s := f.store.seatState(f.showtime)
	counts := s.StatusCounts()
	require.Equal(t, counts[entity.SeatStatusHeld]+counts[entity.SeatStatusBooked], s.BookedSeatCount)
	require.GreaterOrEqual(t, s.BookedSeatCount, 0)
	require.LessOrEqual(t, s.BookedSeatCount, s.TotalSeatCount)

	for _, seat := range s.Seats {
		if seat.Status == entity.SeatStatusAvailable {
			require.Nil(t, seat.BookingID, seat.SeatID)
			continue
		}
		require.NotNil(t, seat.BookingID, seat.SeatID)
		b := f.store.booking(*seat.BookingID)
		require.NotNil(t, b, seat.SeatID)
		require.True(t, b.BookingStatus.IsActive(), seat.SeatID)
		if seat.Status == entity.SeatStatusBooked {
			require.Equal(t, entity.BookingStatusConfirmed, b.BookingStatus, seat.SeatID)
		}
	}
}

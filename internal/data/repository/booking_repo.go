package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrDuplicateBookingCode is returned by Create when the booking code is
// already taken. The surrounding transaction stays usable.
var ErrDuplicateBookingCode = errors.New("booking code already exists")

// ErrDuplicatePaymentID is returned by Confirm when the payment reference
// already settles another booking.
var ErrDuplicatePaymentID = errors.New("payment id already settles another booking")

const (
	bookingCodeConstraint = "bookings_booking_code_key"
	paymentIDConstraint   = "bookings_payment_id_key"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID, status string) (int64, error)
	FindAll(ctx context.Context, status string, limit, offset int) ([]*entity.Booking, error)
	CountAll(ctx context.Context, status string) (int64, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)

	// Conditional transitions. Each reports whether the row was in an
	// allowed source state and has been moved.
	Confirm(ctx context.Context, id uuid.UUID, paymentID string, at time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, user_id, showtime_id, total_seat_count, total_amount, booking_status,
	payment_status, payment_id, booking_code, expires_at, confirmed_at, cancelled_at,
	created_at, updated_at`

func scanBooking(row pgx.Row, b *entity.Booking) error {
	return row.Scan(
		&b.ID,
		&b.UserID,
		&b.ShowtimeID,
		&b.TotalSeatCount,
		&b.TotalAmount,
		&b.BookingStatus,
		&b.PaymentStatus,
		&b.PaymentID,
		&b.BookingCode,
		&b.ExpiresAt,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, showtime_id, total_seat_count, total_amount, booking_status,
		                      payment_status, payment_id, booking_code, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	err := database.WithSavepoint(ctx, r.db, func(q database.Querier) error {
		_, err := q.Exec(ctx, query,
			booking.ID,
			booking.UserID,
			booking.ShowtimeID,
			booking.TotalSeatCount,
			booking.TotalAmount,
			booking.BookingStatus,
			booking.PaymentStatus,
			booking.PaymentID,
			booking.BookingCode,
			booking.ExpiresAt,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return r.insertSeats(ctx, q, booking)
	})

	if database.IsUniqueViolation(err, bookingCodeConstraint) {
		r.log.Warn("Booking code collision",
			zap.String("booking_code", booking.BookingCode),
		)
		return ErrDuplicateBookingCode
	}
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_code", booking.BookingCode),
			zap.String("user_id", booking.UserID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.BookingCode, err)
	}

	return nil
}

func (r *bookingRepository) insertSeats(ctx context.Context, q database.Querier, booking *entity.Booking) error {
	if len(booking.Seats) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO booking_seats (booking_id, seat_id, seat_row, seat_number, seat_type, price) VALUES `)
	args := make([]any, 0, len(booking.Seats)*6)

	for i, seat := range booking.Seats {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			i*6+1, i*6+2, i*6+3, i*6+4, i*6+5, i*6+6)

		args = append(args,
			booking.ID,
			seat.SeatID,
			seat.Row,
			seat.Number,
			seat.SeatType,
			seat.Price,
		)
	}

	_, err := q.Exec(ctx, sb.String(), args...)
	return err
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	q := database.Conn(ctx, r.db)

	var booking entity.Booking
	err := scanBooking(q.QueryRow(ctx, query, id), &booking)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	if err := r.attachSeats(ctx, q, []*entity.Booking{&booking}); err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND ($2 = '' OR booking_status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	q := database.Conn(ctx, r.db)

	rows, err := q.Query(ctx, query, userID, status, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID.String(), err)
	}

	bookings, err := r.collect(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachSeats(ctx, q, bookings); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE user_id = $1 AND ($2 = '' OR booking_status = $2)`

	var count int64
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, userID, status).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) FindAll(ctx context.Context, status string, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE ($1 = '' OR booking_status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	q := database.Conn(ctx, r.db)

	rows, err := q.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings",
			zap.Error(err),
			zap.String("status", status),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings: %w", err)
	}

	bookings, err := r.collect(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachSeats(ctx, q, bookings); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *bookingRepository) CountAll(ctx context.Context, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE ($1 = '' OR booking_status = $1)`

	var count int64
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, status).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err), zap.String("status", status))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

// FindExpiredPending lists pending bookings whose hold has run out, oldest
// first. Seats are not loaded.
func (r *bookingRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE booking_status = 'pending' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find expired bookings",
			zap.Error(err),
			zap.Time("now", now),
		)
		return nil, fmt.Errorf("find expired bookings: %w", err)
	}

	return r.collect(rows)
}

func (r *bookingRepository) Confirm(ctx context.Context, id uuid.UUID, paymentID string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET booking_status = 'confirmed', payment_status = 'completed',
		    payment_id = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $1 AND booking_status = 'pending' AND expires_at > $3
	`

	ok, err := r.transition(ctx, "confirm", query, id, paymentID, at)
	if database.IsUniqueViolation(err, paymentIDConstraint) {
		r.log.Warn("Payment id already settles another booking",
			zap.String("booking_id", id.String()),
			zap.String("payment_id", paymentID),
		)
		return false, ErrDuplicatePaymentID
	}
	return ok, err
}

func (r *bookingRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = $2
		WHERE id = $1 AND booking_status = 'pending'
	`
	return r.transition(ctx, "mark payment failed", query, id, at)
}

func (r *bookingRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET booking_status = 'cancelled', cancelled_at = $2, updated_at = $2
		WHERE id = $1 AND booking_status IN ('pending', 'confirmed')
	`
	return r.transition(ctx, "cancel", query, id, at)
}

func (r *bookingRepository) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET booking_status = 'expired', updated_at = $2
		WHERE id = $1 AND booking_status = 'pending' AND expires_at <= $2
	`
	return r.transition(ctx, "expire", query, id, now)
}

func (r *bookingRepository) transition(ctx context.Context, name, query string, id uuid.UUID, args ...any) (bool, error) {
	result, err := database.Conn(ctx, r.db).Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		r.log.Error("Failed to transition booking",
			zap.Error(err),
			zap.String("transition", name),
			zap.String("booking_id", id.String()),
		)
		return false, fmt.Errorf("%s booking %s: %w", name, id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *bookingRepository) collect(rows pgx.Rows) ([]*entity.Booking, error) {
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		var booking entity.Booking
		if err := scanBooking(rows, &booking); err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, &booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) attachSeats(ctx context.Context, q database.Querier, bookings []*entity.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(bookings))
	byID := make(map[uuid.UUID]*entity.Booking, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	query := `
		SELECT booking_id, seat_id, seat_row, seat_number, seat_type, price
		FROM booking_seats
		WHERE booking_id = ANY($1)
		ORDER BY seat_row, seat_number
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.log.Error("Failed to load booking seats", zap.Error(err), zap.Int("bookings", len(ids)))
		return fmt.Errorf("load booking seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seat entity.BookingSeat
		err := rows.Scan(
			&seat.BookingID,
			&seat.SeatID,
			&seat.Row,
			&seat.Number,
			&seat.SeatType,
			&seat.Price,
		)
		if err != nil {
			r.log.Error("Failed to scan booking seat row", zap.Error(err))
			return fmt.Errorf("scan booking seat row: %w", err)
		}
		if b, ok := byID[seat.BookingID]; ok {
			b.Seats = append(b.Seats, seat)
		}
	}

	return rows.Err()
}

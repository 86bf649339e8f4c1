package repository

import (
	"context"
	"fmt"

	"seat-reservation/internal/data/entity"
	"seat-reservation/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeatRepository owns every write to the seat map. Each method is a single
// conditional statement; callers compare the returned row count with what
// they asked for. booked_seat_count moves in the same statement as the seats.
type SeatRepository interface {
	// Hold moves the given seats from available to held for bookingID and
	// returns the ids of the seats it moved.
	Hold(ctx context.Context, showtimeID, bookingID uuid.UUID, seatIDs []string) ([]string, error)
	// Book moves the booking's held seats to booked.
	Book(ctx context.Context, showtimeID, bookingID uuid.UUID) (int, error)
	// Release frees the booking's seats that are in one of the given statuses.
	Release(ctx context.Context, showtimeID, bookingID uuid.UUID, from ...entity.SeatStatus) (int, error)
}

type seatRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSeatRepository(db database.PgxIface, log *zap.Logger) SeatRepository {
	return &seatRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat")),
	}
}

func (r *seatRepository) Hold(ctx context.Context, showtimeID, bookingID uuid.UUID, seatIDs []string) ([]string, error) {
	query := `
		WITH held AS (
			UPDATE showtime_seats
			SET status = 'held', booking_id = $2
			WHERE showtime_id = $1 AND seat_id = ANY($3) AND status = 'available'
			RETURNING seat_id
		), counted AS (
			UPDATE showtimes
			SET booked_seat_count = booked_seat_count + (SELECT COUNT(*) FROM held),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id
		)
		SELECT seat_id FROM held
	`

	var held []string
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, showtimeID, bookingID, seatIDs)
	if err == nil {
		held, err = pgx.CollectRows(rows, pgx.RowTo[string])
	}
	if err != nil {
		r.log.Error("Failed to hold seats",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
			zap.String("booking_id", bookingID.String()),
			zap.Strings("seat_ids", seatIDs),
		)
		return nil, fmt.Errorf("hold seats for booking %s: %w", bookingID.String(), err)
	}

	return held, nil
}

func (r *seatRepository) Book(ctx context.Context, showtimeID, bookingID uuid.UUID) (int, error) {
	query := `
		UPDATE showtime_seats
		SET status = 'booked'
		WHERE showtime_id = $1 AND booking_id = $2 AND status = 'held'
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, showtimeID, bookingID)
	if err != nil {
		r.log.Error("Failed to book seats",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
			zap.String("booking_id", bookingID.String()),
		)
		return 0, fmt.Errorf("book seats for booking %s: %w", bookingID.String(), err)
	}

	return int(result.RowsAffected()), nil
}

func (r *seatRepository) Release(ctx context.Context, showtimeID, bookingID uuid.UUID, from ...entity.SeatStatus) (int, error) {
	if len(from) == 0 {
		from = []entity.SeatStatus{entity.SeatStatusHeld, entity.SeatStatusBooked}
	}
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	query := `
		WITH released AS (
			UPDATE showtime_seats
			SET status = 'available', booking_id = NULL
			WHERE showtime_id = $1 AND booking_id = $2 AND status = ANY($3)
			RETURNING seat_id
		), counted AS (
			UPDATE showtimes
			SET booked_seat_count = booked_seat_count - (SELECT COUNT(*) FROM released),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id
		)
		SELECT COUNT(*) FROM released
	`

	var changed int
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, showtimeID, bookingID, statuses).Scan(&changed)
	if err != nil {
		r.log.Error("Failed to release seats",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
			zap.String("booking_id", bookingID.String()),
		)
		return 0, fmt.Errorf("release seats of booking %s: %w", bookingID.String(), err)
	}

	return changed, nil
}

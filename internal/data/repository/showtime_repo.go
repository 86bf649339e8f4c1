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

type ShowtimeRepository interface {
	// FindByID loads the showtime with its pricing table and full seat map.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Showtime, error)
	FindPricing(ctx context.Context, showtimeID uuid.UUID) ([]entity.PricingEntry, error)
}

type showtimeRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewShowtimeRepository(db database.PgxIface, log *zap.Logger) ShowtimeRepository {
	return &showtimeRepository{
		db:  db,
		log: log.With(zap.String("repository", "showtime")),
	}
}

func (r *showtimeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Showtime, error) {
	query := `
		SELECT id, movie_id, theater_id, screen_number, start_time, is_active,
		       total_seat_count, booked_seat_count, created_at, updated_at
		FROM showtimes
		WHERE id = $1
	`

	q := database.Conn(ctx, r.db)

	var showtime entity.Showtime
	err := q.QueryRow(ctx, query, id).Scan(
		&showtime.ID,
		&showtime.MovieID,
		&showtime.TheaterID,
		&showtime.ScreenNumber,
		&showtime.StartTime,
		&showtime.IsActive,
		&showtime.TotalSeatCount,
		&showtime.BookedSeatCount,
		&showtime.CreatedAt,
		&showtime.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find showtime by ID",
			zap.Error(err),
			zap.String("showtime_id", id.String()),
		)
		return nil, fmt.Errorf("find showtime by ID %s: %w", id.String(), err)
	}

	if showtime.Pricing, err = r.FindPricing(ctx, id); err != nil {
		return nil, err
	}
	if showtime.Seats, err = r.findSeats(ctx, q, id); err != nil {
		return nil, err
	}

	return &showtime, nil
}

func (r *showtimeRepository) FindPricing(ctx context.Context, showtimeID uuid.UUID) ([]entity.PricingEntry, error) {
	query := `
		SELECT seat_type, price
		FROM showtime_pricing
		WHERE showtime_id = $1
		ORDER BY price DESC
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, showtimeID)
	if err != nil {
		r.log.Error("Failed to find showtime pricing",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
		)
		return nil, fmt.Errorf("find pricing of showtime %s: %w", showtimeID.String(), err)
	}
	defer rows.Close()

	var pricing []entity.PricingEntry
	for rows.Next() {
		var p entity.PricingEntry
		if err := rows.Scan(&p.SeatType, &p.Price); err != nil {
			r.log.Error("Failed to scan pricing row", zap.Error(err))
			return nil, fmt.Errorf("scan pricing row: %w", err)
		}
		pricing = append(pricing, p)
	}

	return pricing, rows.Err()
}

func (r *showtimeRepository) findSeats(ctx context.Context, q database.Querier, showtimeID uuid.UUID) ([]entity.Seat, error) {
	query := `
		SELECT showtime_id, seat_id, seat_row, seat_number, seat_type, status, booking_id
		FROM showtime_seats
		WHERE showtime_id = $1
		ORDER BY seat_row, seat_number
	`

	rows, err := q.Query(ctx, query, showtimeID)
	if err != nil {
		r.log.Error("Failed to find seat map",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
		)
		return nil, fmt.Errorf("find seats of showtime %s: %w", showtimeID.String(), err)
	}
	defer rows.Close()

	var seats []entity.Seat
	for rows.Next() {
		var seat entity.Seat
		err := rows.Scan(
			&seat.ShowtimeID,
			&seat.SeatID,
			&seat.Row,
			&seat.Number,
			&seat.SeatType,
			&seat.Status,
			&seat.BookingID,
		)
		if err != nil {
			r.log.Error("Failed to scan seat row", zap.Error(err))
			return nil, fmt.Errorf("scan seat row: %w", err)
		}
		seats = append(seats, seat)
	}

	return seats, rows.Err()
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/request"
	"seat-reservation/internal/dto/response"
	"seat-reservation/internal/event"
	"seat-reservation/pkg/telemetry"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ReservationService interface {
	// Reserve holds the requested seats for the caller and creates a pending
	// booking. Either every seat is held and the booking exists, or nothing
	// changed.
	Reserve(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
}

type reservationService struct {
	repo  *repository.Repository
	opts  options
	hooks hooks
	log   *zap.Logger
}

func NewReservationService(repo *repository.Repository, log *zap.Logger, opts ...Option) ReservationService {
	s := &reservationService{
		repo: repo,
		opts: buildOptions(opts),
		log:  log.With(zap.String("service", "reservation")),
	}
	s.hooks = hooks{opts: &s.opts, log: s.log}
	return s
}

func (s *reservationService) Reserve(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.Reserve",
		attribute.String("showtime_id", req.ShowtimeID),
		attribute.Int("seat_count", len(req.SeatIDs)),
	)
	booking, err := s.reserve(ctx, actor, req)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *reservationService) reserve(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*entity.Booking, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Reserve validation failed", zap.Any("errors", errs))
		return nil, validationFailed(errs)
	}
	if len(req.SeatIDs) > s.opts.maxSeats {
		return nil, validationFailed(map[string]string{
			"seat_ids": fmt.Sprintf("Maximum length is %d", s.opts.maxSeats),
		})
	}

	showtimeID, err := uuid.Parse(req.ShowtimeID)
	if err != nil {
		return nil, validationFailed(map[string]string{"showtime_id": "Must be a valid UUID"})
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	showtime, err := s.repo.Showtime.FindByID(sctx, showtimeID)
	if err != nil {
		return nil, storageError("load showtime", err)
	}
	if showtime == nil {
		return nil, notFound("showtime", req.ShowtimeID)
	}
	if !showtime.IsActive {
		return nil, newError(KindInactive, fmt.Sprintf("showtime %s is not open for booking", req.ShowtimeID))
	}

	// Report every unusable seat, not just the first
	var unavailable []string
	for _, seatID := range req.SeatIDs {
		seat, ok := showtime.Seat(seatID)
		if !ok || seat.Status != entity.SeatStatusAvailable {
			unavailable = append(unavailable, seatID)
		}
	}
	if len(unavailable) > 0 {
		s.log.Info("Seats unavailable",
			zap.String("showtime_id", req.ShowtimeID),
			zap.Strings("seat_ids", unavailable),
		)
		return nil, seatsUnavailable(unavailable)
	}

	seats, total, err := priceSeats(showtime, req.SeatIDs)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:         actor.UserID,
		ShowtimeID:     showtime.ID,
		TotalSeatCount: len(seats),
		TotalAmount:    total,
		BookingStatus:  entity.BookingStatusPending,
		PaymentStatus:  entity.PaymentStatusPending,
		ExpiresAt:      now.Add(s.opts.holdDuration),
	}
	for i := range seats {
		seats[i].BookingID = booking.ID
	}
	booking.Seats = seats

	err = s.repo.Tx.WithTx(sctx, func(txCtx context.Context) error {
		held, err := s.repo.Seat.Hold(txCtx, showtime.ID, booking.ID, req.SeatIDs)
		if err != nil {
			return storageError("hold seats", err)
		}
		if lost := missing(req.SeatIDs, held); len(lost) > 0 {
			s.log.Info("Seat hold lost to a concurrent writer",
				zap.String("showtime_id", req.ShowtimeID),
				zap.Strings("lost_seat_ids", lost),
				zap.Int("held", len(held)),
			)
			return &ReservationError{
				Kind:    KindConflict,
				Message: "seat availability changed, refresh and retry",
				Seats:   lost,
			}
		}
		return s.createWithUniqueCode(txCtx, booking)
	})
	if err != nil {
		return nil, storageError("reserve seats", err)
	}

	s.log.Info("Seats reserved",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_code", booking.BookingCode),
		zap.String("user_id", actor.UserID.String()),
		zap.String("showtime_id", req.ShowtimeID),
		zap.Strings("seat_ids", req.SeatIDs),
		zap.Float64("total_amount", booking.TotalAmount),
	)

	s.hooks.seatMapChanged(ctx, showtime.ID)
	s.hooks.publish(ctx, event.BookingReserved, booking)

	return booking, nil
}

func (s *reservationService) createWithUniqueCode(ctx context.Context, booking *entity.Booking) error {
	for attempt := 1; attempt <= bookingCodeAttempts; attempt++ {
		code, err := s.opts.newCode(s.opts.now())
		if err != nil {
			return storageError("generate booking code", err)
		}
		booking.BookingCode = code

		err = s.repo.Booking.Create(ctx, booking)
		if errors.Is(err, repository.ErrDuplicateBookingCode) {
			s.log.Warn("Booking code collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return storageError("create booking", err)
		}
		return nil
	}

	return storageError("create booking", fmt.Errorf("no unique booking code after %d attempts", bookingCodeAttempts))
}

// missing returns the requested seats absent from got, in request order.
func missing(requested, got []string) []string {
	have := make(map[string]struct{}, len(got))
	for _, id := range got {
		have[id] = struct{}{}
	}
	var lost []string
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			lost = append(lost, id)
		}
	}
	return lost
}

// priceSeats snapshots seat details and prices from the showtime's pricing
// table. A seat type without a price entry rejects the whole request.
func priceSeats(showtime *entity.Showtime, seatIDs []string) ([]entity.BookingSeat, float64, error) {
	seats := make([]entity.BookingSeat, 0, len(seatIDs))
	var (
		total    float64
		unpriced []string
	)

	for _, seatID := range seatIDs {
		seat, _ := showtime.Seat(seatID)
		price, ok := showtime.PriceFor(seat.SeatType)
		if !ok {
			unpriced = append(unpriced, seatID)
			continue
		}
		seats = append(seats, entity.BookingSeat{
			SeatID:   seat.SeatID,
			Row:      seat.Row,
			Number:   seat.Number,
			SeatType: seat.SeatType,
			Price:    price,
		})
		total += price
	}

	if len(unpriced) > 0 {
		return nil, 0, &ReservationError{
			Kind:    KindInvalidSeatType,
			Message: "no price configured for the seat type",
			Seats:   unpriced,
		}
	}

	return seats, math.Round(total*100) / 100, nil
}

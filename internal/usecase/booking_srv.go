package usecase

import (
	"context"
	"errors"

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

type BookingService interface {
	GetBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// ListBookings returns every booking to an admin and the caller's own
	// bookings to anyone else.
	ListBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Cancel releases the booking's seats. Owner or admin only.
	Cancel(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error)
}

// errLostRace aborts a transaction whose conditional update matched no row.
var errLostRace = errors.New("booking state changed concurrently")

type bookingService struct {
	repo  *repository.Repository
	opts  options
	hooks hooks
	log   *zap.Logger
}

func NewBookingService(repo *repository.Repository, log *zap.Logger, opts ...Option) BookingService {
	s := &bookingService{
		repo: repo,
		opts: buildOptions(opts),
		log:  log.With(zap.String("service", "booking")),
	}
	s.hooks = hooks{opts: &s.opts, log: s.log}
	return s
}

func (s *bookingService) GetBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error) {
	booking, err := loadBooking(ctx, s.repo, &s.opts, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(actor.UserID) && !actor.IsAdmin() {
		return nil, newError(KindUnauthorized, "booking belongs to another user")
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	return s.list(ctx, req, &actor.UserID)
}

func (s *bookingService) ListBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	if actor.IsAdmin() {
		return s.list(ctx, req, nil)
	}
	return s.list(ctx, req, &actor.UserID)
}

// list pages through one user's bookings, or all bookings when userID is nil.
func (s *bookingService) list(ctx context.Context, req *request.ListBookingsRequest, userID *uuid.UUID) (*response.PaginatedResponse[response.BookingResponse], error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PerPage == 0 {
		req.PerPage = 10
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	var (
		bookings []*entity.Booking
		total    int64
		err      error
	)
	if userID == nil {
		bookings, err = s.repo.Booking.FindAll(sctx, req.Status, req.Limit(), req.Offset())
	} else {
		bookings, err = s.repo.Booking.FindByUserID(sctx, *userID, req.Status, req.Limit(), req.Offset())
	}
	if err != nil {
		return nil, storageError("list bookings", err)
	}

	if userID == nil {
		total, err = s.repo.Booking.CountAll(sctx, req.Status)
	} else {
		total, err = s.repo.Booking.CountByUserID(sctx, *userID, req.Status)
	}
	if err != nil {
		return nil, storageError("count bookings", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = response.BookingToResponse(b)
	}

	return response.NewPaginatedResponse(items, req.Page, req.Limit(), total), nil
}

func (s *bookingService) Cancel(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Cancel", attribute.String("booking_id", bookingID))
	booking, err := s.cancel(ctx, actor, bookingID)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) cancel(ctx context.Context, actor utils.Actor, bookingID string) (*entity.Booking, error) {
	booking, err := loadBooking(ctx, s.repo, &s.opts, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(actor.UserID) && !actor.IsAdmin() {
		s.log.Warn("Cancel rejected for non-owner",
			zap.String("booking_id", bookingID),
			zap.String("user_id", actor.UserID.String()),
		)
		return nil, newError(KindUnauthorized, "booking belongs to another user")
	}
	if err := cancellable(booking.BookingStatus); err != nil {
		return nil, err
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	now := s.opts.now()
	released := 0
	err = s.repo.Tx.WithTx(sctx, func(txCtx context.Context) error {
		ok, err := s.repo.Booking.Cancel(txCtx, booking.ID, now)
		if err != nil {
			return storageError("cancel booking", err)
		}
		if !ok {
			return errLostRace
		}

		released, err = s.repo.Seat.Release(txCtx, booking.ShowtimeID, booking.ID,
			entity.SeatStatusHeld, entity.SeatStatusBooked)
		if err != nil {
			return storageError("release seats", err)
		}
		return nil
	})

	if errors.Is(err, errLostRace) {
		return nil, s.reportCurrentState(sctx, booking.ID)
	}
	if err != nil {
		return nil, storageError("cancel booking", err)
	}

	if released != booking.TotalSeatCount {
		s.log.Warn("Released seat count differs from booking",
			zap.String("booking_id", booking.ID.String()),
			zap.Int("released", released),
			zap.Int("booked", booking.TotalSeatCount),
		)
	}

	booking.BookingStatus = entity.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	s.log.Info("Booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("by", actor.UserID.String()),
		zap.Int("released", released),
	)

	s.hooks.seatMapChanged(ctx, booking.ShowtimeID)
	s.hooks.publish(ctx, event.BookingCancelled, booking)

	return booking, nil
}

func cancellable(status entity.BookingStatus) error {
	switch status {
	case entity.BookingStatusCancelled:
		return newError(KindAlreadyCancelled, "booking is already cancelled")
	case entity.BookingStatusExpired:
		return newError(KindInvalidState, "booking has expired")
	}
	return nil
}

// reportCurrentState explains why a cancel matched no row.
func (s *bookingService) reportCurrentState(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return storageError("reload booking", err)
	}
	if current == nil {
		return notFound("booking", id.String())
	}
	if err := cancellable(current.BookingStatus); err != nil {
		return err
	}
	return newError(KindConflict, "booking changed concurrently, retry")
}

func loadBooking(ctx context.Context, repo *repository.Repository, opts *options, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, validationFailed(map[string]string{"booking_id": "Must be a valid UUID"})
	}

	sctx, cancel := opts.storageContext(ctx)
	defer cancel()

	booking, err := repo.Booking.FindByID(sctx, id)
	if err != nil {
		return nil, storageError("load booking", err)
	}
	if booking == nil {
		return nil, notFound("booking", bookingID)
	}
	return booking, nil
}

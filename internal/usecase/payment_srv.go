package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/request"
	"seat-reservation/internal/dto/response"
	"seat-reservation/internal/event"
	"seat-reservation/internal/gateway"
	"seat-reservation/pkg/telemetry"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PaymentService interface {
	// CreatePaymentIntent opens a provider intent bound to a pending booking
	// and its amount. Owner only.
	CreatePaymentIntent(ctx context.Context, actor utils.Actor, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error)

	// ConfirmPayment settles a pending booking: held seats become booked on
	// approval, nothing changes but the payment status on decline.
	ConfirmPayment(ctx context.Context, actor utils.Actor, req *request.ConfirmPaymentRequest) (*response.BookingResponse, error)
	GetPaymentStatus(ctx context.Context, actor utils.Actor, bookingID string) (*response.PaymentStatusResponse, error)
}

type paymentService struct {
	repo    *repository.Repository
	gateway gateway.PaymentGateway
	opts    options
	hooks   hooks
	log     *zap.Logger
}

func NewPaymentService(repo *repository.Repository, gw gateway.PaymentGateway, log *zap.Logger, opts ...Option) PaymentService {
	s := &paymentService{
		repo:    repo,
		gateway: gw,
		opts:    buildOptions(opts),
		log:     log.With(zap.String("service", "payment"), zap.String("gateway", gw.Name())),
	}
	s.hooks = hooks{opts: &s.opts, log: s.log}
	return s
}

// errPaymentReused aborts a confirmation whose provider reference already
// settles another booking.
var errPaymentReused = errors.New("payment reference already used")

func (s *paymentService) CreatePaymentIntent(ctx context.Context, actor utils.Actor, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.CreateIntent", attribute.String("booking_id", req.BookingID))
	resp, err := s.createIntent(ctx, actor, req)
	telemetry.EndSpan(span, err)
	return resp, err
}

func (s *paymentService) createIntent(ctx context.Context, actor utils.Actor, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	booking, err := loadBooking(ctx, s.repo, &s.opts, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(actor.UserID) {
		return nil, newError(KindUnauthorized, "booking belongs to another user")
	}
	if err := settleable(booking, s.opts.now()); err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.gatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(gctx, &gateway.IntentRequest{
		BookingID:   booking.ID,
		BookingCode: booking.BookingCode,
		UserID:      booking.UserID,
		Amount:      booking.TotalAmount,
		Currency:    s.opts.currency,
	})
	if err != nil {
		s.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return nil, &ReservationError{Kind: KindPaymentGateway, Message: "payment provider unavailable, retry", Err: err}
	}

	s.log.Info("Payment intent created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payment_intent_id", intent.Reference),
		zap.Int64("amount_minor", intent.Amount),
	)

	return &response.PaymentIntentResponse{
		BookingID:       booking.ID.String(),
		PaymentIntentID: intent.Reference,
		ClientSecret:    intent.ClientSecret,
		Amount:          booking.TotalAmount,
		Currency:        intent.Currency,
		ExpiresAt:       booking.ExpiresAt,
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, actor utils.Actor, req *request.ConfirmPaymentRequest) (*response.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.Confirm", attribute.String("booking_id", req.BookingID))
	booking, err := s.confirm(ctx, actor, req)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *paymentService) confirm(ctx context.Context, actor utils.Actor, req *request.ConfirmPaymentRequest) (*entity.Booking, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Confirm payment validation failed", zap.Any("errors", errs))
		return nil, validationFailed(errs)
	}

	booking, err := loadBooking(ctx, s.repo, &s.opts, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(actor.UserID) {
		return nil, newError(KindUnauthorized, "booking belongs to another user")
	}
	if err := settleable(booking, s.opts.now()); err != nil {
		return nil, err
	}

	gctx, gcancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.gatewayTimeout)
	defer gcancel()

	result, err := s.gateway.AuthorizeCharge(gctx, &gateway.ChargeRequest{
		BookingID:   booking.ID,
		BookingCode: booking.BookingCode,
		Amount:      booking.TotalAmount,
		Currency:    s.opts.currency,
		Reference:   req.PaymentReference,
	})
	if err != nil {
		s.log.Error("Payment gateway call failed",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return nil, &ReservationError{Kind: KindPaymentGateway, Message: "payment provider unavailable, retry", Err: err}
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	now := s.opts.now()
	if !result.Success {
		return nil, s.recordDecline(sctx, booking, result, now)
	}

	err = s.repo.Tx.WithTx(sctx, func(txCtx context.Context) error {
		ok, err := s.repo.Booking.Confirm(txCtx, booking.ID, result.ExternalReference, now)
		if errors.Is(err, repository.ErrDuplicatePaymentID) {
			return errPaymentReused
		}
		if err != nil {
			return storageError("confirm booking", err)
		}
		if !ok {
			return errLostRace
		}

		booked, err := s.repo.Seat.Book(txCtx, booking.ShowtimeID, booking.ID)
		if err != nil {
			return storageError("book seats", err)
		}
		if booked != booking.TotalSeatCount {
			return storageError("book seats", fmt.Errorf("booked %d of %d held seats", booked, booking.TotalSeatCount))
		}
		return nil
	})

	if errors.Is(err, errPaymentReused) {
		s.log.Warn("Payment reference already settles another booking",
			zap.String("booking_id", booking.ID.String()),
			zap.String("payment_id", result.ExternalReference),
		)
		return nil, newError(KindPaymentDeclined, "payment was declined: reference already used for another booking")
	}
	if errors.Is(err, errLostRace) {
		// The provider captured money for a booking that can no longer take it.
		s.log.Error("Charge approved but booking could not be confirmed, refund required",
			zap.String("booking_id", booking.ID.String()),
			zap.String("booking_code", booking.BookingCode),
			zap.String("payment_id", result.ExternalReference),
			zap.Float64("amount", booking.TotalAmount),
		)
		return nil, s.reportCurrentState(sctx, booking.ID)
	}
	if err != nil {
		s.log.Error("Charge approved but confirmation failed",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("payment_id", result.ExternalReference),
		)
		return nil, storageError("confirm booking", err)
	}

	booking.BookingStatus = entity.BookingStatusConfirmed
	booking.PaymentStatus = entity.PaymentStatusCompleted
	booking.PaymentID = &result.ExternalReference
	booking.ConfirmedAt = &now
	booking.UpdatedAt = now

	s.log.Info("Booking confirmed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_code", booking.BookingCode),
		zap.String("payment_id", result.ExternalReference),
	)

	s.hooks.seatMapChanged(ctx, booking.ShowtimeID)
	s.hooks.publish(ctx, event.BookingConfirmed, booking)

	return booking, nil
}

func (s *paymentService) recordDecline(ctx context.Context, booking *entity.Booking, result *gateway.ChargeResult, now time.Time) error {
	if _, err := s.repo.Booking.MarkPaymentFailed(ctx, booking.ID, now); err != nil {
		return storageError("record payment failure", err)
	}

	booking.PaymentStatus = entity.PaymentStatusFailed
	booking.UpdatedAt = now

	s.log.Info("Payment declined",
		zap.String("booking_id", booking.ID.String()),
		zap.String("failure_code", result.FailureCode),
		zap.String("failure_reason", result.FailureReason),
	)
	s.hooks.publish(ctx, event.PaymentFailed, booking)

	msg := "payment was declined"
	if result.FailureReason != "" {
		msg = fmt.Sprintf("payment was declined: %s", result.FailureReason)
	}
	return newError(KindPaymentDeclined, msg)
}

// settleable rejects bookings that cannot take a payment.
func settleable(b *entity.Booking, now time.Time) error {
	switch b.BookingStatus {
	case entity.BookingStatusConfirmed:
		return newError(KindAlreadyConfirmed, "booking is already confirmed")
	case entity.BookingStatusCancelled:
		return newError(KindInvalidState, "booking is cancelled")
	case entity.BookingStatusExpired:
		return newError(KindHoldExpired, "booking hold has expired")
	}
	if b.IsHoldExpired(now) {
		return newError(KindHoldExpired, "booking hold has expired")
	}
	return nil
}

func (s *paymentService) reportCurrentState(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return storageError("reload booking", err)
	}
	if current == nil {
		return notFound("booking", id.String())
	}
	if err := settleable(current, s.opts.now()); err != nil {
		return err
	}
	return newError(KindConflict, "booking changed concurrently, retry")
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, actor utils.Actor, bookingID string) (*response.PaymentStatusResponse, error) {
	booking, err := loadBooking(ctx, s.repo, &s.opts, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(actor.UserID) && !actor.IsAdmin() {
		return nil, newError(KindUnauthorized, "booking belongs to another user")
	}

	resp := response.PaymentStatusToResponse(&entity.PaymentSummary{
		BookingID:     booking.ID,
		BookingCode:   booking.BookingCode,
		BookingStatus: booking.BookingStatus,
		PaymentStatus: booking.PaymentStatus,
		PaymentID:     booking.PaymentID,
		Amount:        booking.TotalAmount,
		ExpiresAt:     booking.ExpiresAt,
		ConfirmedAt:   booking.ConfirmedAt,
	})
	return &resp, nil
}

package usecase

import (
	"context"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/event"
	"seat-reservation/pkg/cache"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHoldDuration   = 10 * time.Minute
	defaultStorageTimeout = 5 * time.Second
	defaultGatewayTimeout = 15 * time.Second
	defaultMaxSeats       = 10
	bookingCodeAttempts   = 5
	hookTimeout           = 2 * time.Second
)

type options struct {
	now            func() time.Time
	holdDuration   time.Duration
	storageTimeout time.Duration
	gatewayTimeout time.Duration
	maxSeats       int
	currency       string
	newCode        func(time.Time) (string, error)
	publisher      event.Publisher
	cache          cache.Cache
	keys           cache.Keys
	showtimeTTL    time.Duration
	seatMapTTL     time.Duration
}

type Option func(*options)

func defaultOptions() options {
	return options{
		now:            time.Now,
		holdDuration:   defaultHoldDuration,
		storageTimeout: defaultStorageTimeout,
		gatewayTimeout: defaultGatewayTimeout,
		maxSeats:       defaultMaxSeats,
		currency:       "inr",
		newCode:        utils.GenerateBookingCode,
		publisher:      event.NopPublisher{},
		cache:          cache.NewMemoryCache(),
		keys:           cache.Keys{Prefix: "seatres"},
		showtimeTTL:    180 * time.Second,
		seatMapTTL:     120 * time.Second,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithHoldDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdDuration = d
		}
	}
}

func WithStorageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.storageTimeout = d
		}
	}
}

func WithMaxSeats(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSeats = n
		}
	}
}

func WithCurrency(currency string) Option {
	return func(o *options) {
		if currency != "" {
			o.currency = currency
		}
	}
}

func WithCodeGenerator(gen func(time.Time) (string, error)) Option {
	return func(o *options) { o.newCode = gen }
}

func WithPublisher(p event.Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithCache(c cache.Cache, keys cache.Keys, showtimeTTL, seatMapTTL time.Duration) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
		o.keys = keys
		if showtimeTTL > 0 {
			o.showtimeTTL = showtimeTTL
		}
		if seatMapTTL > 0 {
			o.seatMapTTL = seatMapTTL
		}
	}
}

// OptionsFromConfig maps the reservation and payment settings.
func OptionsFromConfig(cfg *utils.Config) []Option {
	return []Option{
		WithHoldDuration(cfg.Reservation.HoldDuration()),
		WithStorageTimeout(cfg.Reservation.StorageTimeout),
		WithMaxSeats(cfg.Reservation.MaxSeatsPerBooking),
		WithCurrency(cfg.Payment.Currency),
	}
}

// storageContext detaches ctx from client cancellation and bounds it, so a
// unit of work either completes or times out as a whole.
func (o *options) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.storageTimeout)
}

// hooks run after a seat-map transaction has committed. Failures are logged
// and never reach the caller.
type hooks struct {
	opts *options
	log  *zap.Logger
}

func (h hooks) seatMapChanged(ctx context.Context, showtimeID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()

	if err := h.opts.cache.Delete(ctx, h.opts.keys.ForShowtime(showtimeID.String())...); err != nil {
		h.log.Warn("Failed to invalidate showtime cache",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
		)
	}
}

func (h hooks) publish(ctx context.Context, t event.Type, b *entity.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()

	if err := h.opts.publisher.Publish(ctx, event.NewBookingEvent(t, b, h.opts.now())); err != nil {
		h.log.Warn("Failed to publish booking event",
			zap.Error(err),
			zap.String("type", string(t)),
			zap.String("booking_id", b.ID.String()),
		)
	}
}

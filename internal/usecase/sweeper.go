package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/response"
	"seat-reservation/internal/event"
	"seat-reservation/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type SweeperConfig struct {
	// Interval between scans for expired holds
	Interval time.Duration
	// BatchSize is the number of bookings fetched per scan query
	BatchSize int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  30 * time.Second,
		BatchSize: 100,
	}
}

// Sweeper expires pending bookings whose hold has run out and returns their
// seats to the pool. Sweeping the same booking twice is a no-op.
type Sweeper struct {
	repo   *repository.Repository
	config SweeperConfig
	opts   options
	hooks  hooks
	log    *zap.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	runs           int64
	totalExpired   int64
	totalFailures  int64
	lastRunAt      time.Time
	lastRunExpired int
}

func NewSweeper(repo *repository.Repository, config SweeperConfig, log *zap.Logger, opts ...Option) *Sweeper {
	def := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}

	s := &Sweeper{
		repo:   repo,
		config: config,
		opts:   buildOptions(opts),
		log:    log.With(zap.String("worker", "sweeper")),
	}
	s.hooks = hooks{opts: &s.opts, log: s.log}
	return s
}

// Sweep expires every pending booking with expiresAt <= now and returns how
// many it reclaimed. A failure on one booking is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "sweeper.Sweep")
	reclaimed, failures, err := s.sweep(ctx, now)
	span.SetAttributes(
		attribute.Int("reclaimed", reclaimed),
		attribute.Int("failures", failures),
	)
	telemetry.EndSpan(span, err)

	s.mu.Lock()
	s.runs++
	s.totalExpired += int64(reclaimed)
	s.totalFailures += int64(failures)
	s.lastRunAt = now
	s.lastRunExpired = reclaimed
	s.mu.Unlock()

	return reclaimed, err
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) (int, int, error) {
	reclaimed, failures := 0, 0

	for {
		sctx, cancel := s.opts.storageContext(ctx)
		batch, err := s.repo.Booking.FindExpiredPending(sctx, now, s.config.BatchSize)
		cancel()
		if err != nil {
			s.log.Error("Failed to list expired bookings", zap.Error(err))
			return reclaimed, failures, storageError("list expired bookings", err)
		}

		progressed := 0
		for _, booking := range batch {
			ok, err := s.expire(ctx, booking, now)
			if err != nil {
				failures++
				s.log.Error("Failed to expire booking",
					zap.Error(err),
					zap.String("booking_id", booking.ID.String()),
				)
				continue
			}
			if ok {
				progressed++
			}
		}
		reclaimed += progressed

		// A short batch means the backlog is drained. A full batch with no
		// progress would only return the same failing rows again.
		if len(batch) < s.config.BatchSize || progressed == 0 {
			break
		}
	}

	if reclaimed > 0 || failures > 0 {
		s.log.Info("Sweep finished",
			zap.Int("reclaimed", reclaimed),
			zap.Int("failures", failures),
		)
	}
	return reclaimed, failures, nil
}

// expire moves one booking to expired and frees its held seats in a single
// transaction. It reports false when the booking was no longer expirable.
func (s *Sweeper) expire(ctx context.Context, booking *entity.Booking, now time.Time) (bool, error) {
	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	expired := false
	released := 0
	err := s.repo.Tx.WithTx(sctx, func(txCtx context.Context) error {
		ok, err := s.repo.Booking.Expire(txCtx, booking.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		expired = true

		released, err = s.repo.Seat.Release(txCtx, booking.ShowtimeID, booking.ID, entity.SeatStatusHeld)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("expire booking %s: %w", booking.ID.String(), err)
	}
	if !expired {
		return false, nil
	}

	booking.BookingStatus = entity.BookingStatusExpired
	booking.UpdatedAt = now

	s.log.Info("Booking hold expired",
		zap.String("booking_id", booking.ID.String()),
		zap.String("showtime_id", booking.ShowtimeID.String()),
		zap.Int("released", released),
	)

	s.hooks.seatMapChanged(ctx, booking.ShowtimeID)
	s.hooks.publish(ctx, event.BookingExpired, booking)

	return true, nil
}

// Start runs Sweep immediately and then on every tick until Stop is called
// or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("Starting sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx, s.opts.now()); err != nil {
		s.log.Warn("Sweep aborted", zap.Error(err))
	}
}

// SweepNow is the on-demand trigger used by the admin endpoint.
func (s *Sweeper) SweepNow(ctx context.Context) (*response.SweepResponse, error) {
	now := s.opts.now()
	n, err := s.Sweep(ctx, now)
	if err != nil {
		return nil, err
	}
	return &response.SweepResponse{Reclaimed: n, SweptAt: now}, nil
}

func (s *Sweeper) Stats() *response.SweeperStatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &response.SweeperStatsResponse{
		Running:        s.running,
		Runs:           s.runs,
		TotalExpired:   s.totalExpired,
		TotalFailures:  s.totalFailures,
		LastRunAt:      s.lastRunAt,
		LastRunExpired: s.lastRunExpired,
	}
}

package usecase

import (
	"context"
	"time"

	"seat-reservation/internal/data/entity"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShowtimeService serves the cached read model of a showtime. Results may
// lag the seat map by up to the cache TTL and are never used by writers.
type ShowtimeService interface {
	GetShowtime(ctx context.Context, showtimeID string) (*response.ShowtimeResponse, error)
	GetSeatAvailability(ctx context.Context, showtimeID string) (*response.SeatAvailabilityResponse, error)
}

type showtimeService struct {
	repo *repository.Repository
	opts options
	log  *zap.Logger
}

func NewShowtimeService(repo *repository.Repository, log *zap.Logger, opts ...Option) ShowtimeService {
	return &showtimeService{
		repo: repo,
		opts: buildOptions(opts),
		log:  log.With(zap.String("service", "showtime")),
	}
}

func (s *showtimeService) GetShowtime(ctx context.Context, showtimeID string) (*response.ShowtimeResponse, error) {
	key := s.opts.keys.Showtime(showtimeID)

	var cached response.ShowtimeResponse
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	showtime, err := s.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	resp := response.ShowtimeToResponse(showtime)
	s.toCache(ctx, key, resp, s.opts.showtimeTTL)
	return &resp, nil
}

func (s *showtimeService) GetSeatAvailability(ctx context.Context, showtimeID string) (*response.SeatAvailabilityResponse, error) {
	key := s.opts.keys.SeatMap(showtimeID)

	var cached response.SeatAvailabilityResponse
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	showtime, err := s.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	resp := response.SeatAvailabilityToResponse(showtime, s.opts.now())
	s.toCache(ctx, key, resp, s.opts.seatMapTTL)
	return &resp, nil
}

func (s *showtimeService) load(ctx context.Context, showtimeID string) (*entity.Showtime, error) {
	id, err := uuid.Parse(showtimeID)
	if err != nil {
		return nil, validationFailed(map[string]string{"showtime_id": "Must be a valid UUID"})
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	showtime, err := s.repo.Showtime.FindByID(sctx, id)
	if err != nil {
		return nil, storageError("load showtime", err)
	}
	if showtime == nil {
		return nil, notFound("showtime", showtimeID)
	}
	return showtime, nil
}

func (s *showtimeService) fromCache(ctx context.Context, key string, dst any) bool {
	ok, err := s.opts.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.Warn("Cache read failed", zap.Error(err), zap.String("key", key))
		return false
	}
	return ok
}

func (s *showtimeService) toCache(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.opts.cache.Set(ctx, key, value, ttl); err != nil {
		s.log.Warn("Cache write failed", zap.Error(err), zap.String("key", key))
	}
}

package usecase

import (
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/gateway"
	"seat-reservation/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth        AuthService
	Reservation ReservationService
	Booking     BookingService
	Payment     PaymentService
	Showtime    ShowtimeService
	Sweeper     *Sweeper
}

// NewService builds every service over one shared set of options. Writers
// and the read model must share a cache instance so that invalidation
// reaches the cached entries.
func NewService(repo *repository.Repository, gw gateway.PaymentGateway, config *utils.Config, log *zap.Logger, opts ...Option) *Service {
	all := append(OptionsFromConfig(config), opts...)

	shared := buildOptions(all)
	all = append(all, WithCache(shared.cache, shared.keys, shared.showtimeTTL, shared.seatMapTTL))

	sweeper := NewSweeper(repo, SweeperConfig{
		Interval:  config.Reservation.SweepInterval,
		BatchSize: config.Reservation.SweepBatchSize,
	}, log, all...)

	return &Service{
		Auth:        NewAuthService(repo, config, log, all...),
		Reservation: NewReservationService(repo, log, all...),
		Booking:     NewBookingService(repo, log, all...),
		Payment:     NewPaymentService(repo, gw, log, all...),
		Showtime:    NewShowtimeService(repo, log, all...),
		Sweeper:     sweeper,
	}
}

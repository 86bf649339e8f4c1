// internal/wire/wire.go
package wire

import (
	"context"
	"net/http"
	"time"

	"seat-reservation/internal/adaptor"
	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/middleware"
	"seat-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the wired HTTP surface
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Deps are the infrastructure pieces the router needs besides the services.
type Deps struct {
	Limiter middleware.Limiter
	Health  HealthChecker
}

// Wiring builds handlers and routes over the given services
func Wiring(service *usecase.Service, deps Deps, config *utils.Config, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, service, deps, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	service *usecase.Service,
	deps Deps,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	auth := middleware.AuthSession(service.Auth, logger)
	limit := middleware.RateLimit(deps.Limiter, config.RateLimit, logger)

	wireAuth(r, handler.Auth, auth)
	wireShowtime(r, handler.Showtime)
	wireBooking(r, handler.Booking, auth, limit)
	wirePayment(r, handler.Payment, auth)
	wireAdmin(r, handler.Admin, auth, logger)

	r.Get("/health", healthHandler(deps.Health))

	return r
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				utils.ResponseError(w, http.StatusServiceUnavailable, "unavailable", "Database unreachable", nil)
				return
			}
		}
		utils.ResponseSuccess(w, "OK", nil)
	}
}

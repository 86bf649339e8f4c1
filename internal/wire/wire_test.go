package wire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/gateway"
	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newApp(health HealthChecker) *App {
	config := &utils.Config{
		Reservation: utils.ReservationConfig{HoldMinutes: 10, MaxSeatsPerBooking: 10},
	}
	service := usecase.NewService(&repository.Repository{}, gateway.NewMockGateway(nil), config, zap.NewNop())
	return Wiring(service, Deps{Health: health}, config, zap.NewNop())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health HealthChecker
		want   int
	}{
		{name: "no checker", want: http.StatusOK},
		{name: "database up", health: pinger{}, want: http.StatusOK},
		{name: "database down", health: pinger{err: errors.New("dial tcp: refused")}, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(tt.health)
			w := httptest.NewRecorder()
			app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newApp(nil)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/logout"},
		{http.MethodPost, "/api/bookings"},
		{http.MethodGet, "/api/bookings"},
		{http.MethodGet, "/api/bookings/123"},
		{http.MethodDelete, "/api/bookings/123"},
		{http.MethodPost, "/api/payments/confirm"},
		{http.MethodGet, "/api/payments/status/123"},
		{http.MethodPost, "/api/admin/sweeps"},
		{http.MethodGet, "/api/admin/sweeper"},
	}

	for _, rt := range routes {
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.method+" "+rt.path)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newApp(nil)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/movies", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

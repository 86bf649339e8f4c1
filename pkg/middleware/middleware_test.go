package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuth struct {
	actor utils.Actor
	err   error
	token string
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (utils.Actor, error) {
	s.token = token
	return s.actor, s.err
}

func echoActor(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := utils.GetActorFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", actor.UserID.String())
		w.Header().Set("X-Role", actor.Role)
		token, _ := utils.GetTokenFromContext(r.Context())
		w.Header().Set("X-Token", token)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthSession(t *testing.T) {
	userID := uuid.New()
	token := uuid.NewString()

	tests := []struct {
		name     string
		header   string
		err      error
		wantCode int
	}{
		{name: "valid bearer", header: "Bearer " + token, wantCode: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + token, wantCode: http.StatusNoContent},
		{name: "missing header", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantCode: http.StatusUnauthorized},
		{name: "no token", header: "Bearer ", wantCode: http.StatusUnauthorized},
		{name: "expired session", header: "Bearer " + token, err: usecase.ErrUnauthenticated, wantCode: http.StatusUnauthorized},
		{name: "store failure", header: "Bearer " + token, err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{actor: utils.Actor{UserID: userID, Role: "admin"}, err: tt.err}
			h := AuthSession(auth, zap.NewNop())(echoActor(t))

			req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusNoContent {
				assert.Equal(t, userID.String(), w.Header().Get("X-User"))
				assert.Equal(t, "admin", w.Header().Get("X-Role"))
				assert.Equal(t, token, w.Header().Get("X-Token"))
				assert.Equal(t, token, auth.token)
			}
		})
	}
}

func TestAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Admin(zap.NewNop())(ok)

	serve := func(ctx context.Context) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/sweeps", nil).WithContext(ctx))
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(utils.SetUserContext(context.Background(), uuid.New(), "customer")))
	assert.Equal(t, http.StatusNoContent, serve(utils.SetUserContext(context.Background(), uuid.New(), utils.RoleAdmin)))
}

type stubLimiter struct {
	decision Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	cfg := utils.RateLimitConfig{Enabled: true, Prefix: "rl", Capacity: 10}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	userID := uuid.New()

	serve := func(l Limiter, cfg utils.RateLimitConfig) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
		req = req.WithContext(utils.SetUserContext(req.Context(), userID, "customer"))
		w := httptest.NewRecorder()
		RateLimit(l, cfg, zap.NewNop())(ok).ServeHTTP(w, req)
		return w
	}

	t.Run("allowed", func(t *testing.T) {
		l := &stubLimiter{decision: Decision{Allowed: true, Remaining: 9}}
		w := serve(l, cfg)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
		require.Len(t, l.keys, 1)
		assert.Equal(t, "rl:"+userID.String()+":POST /api/bookings", l.keys[0])
	})

	t.Run("blocked", func(t *testing.T) {
		l := &stubLimiter{decision: Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
		w := serve(l, cfg)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		w := serve(&stubLimiter{err: errors.New("redis down")}, cfg)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		l := &stubLimiter{}
		w := serve(l, utils.RateLimitConfig{Enabled: false})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, l.keys)
	})
}

func TestRecover(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	w := httptest.NewRecorder()
	Recover(zap.NewNop())(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":false`)
}

func TestLoggerCapturesStatus(t *testing.T) {
	h := Logger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRateKeyClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "203.0.113.7:51234", want: "rl:ip:203.0.113.7:GET /api/showtimes"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:443", want: "rl:ip:2001:db8::1:GET /api/showtimes"},
		{name: "set by RealIP", remoteAddr: "198.51.100.4", want: "rl:ip:198.51.100.4:GET /api/showtimes"},
		{name: "raw forwarded header ignored", remoteAddr: "203.0.113.7:51234", forwarded: "10.9.9.9", want: "rl:ip:203.0.113.7:GET /api/showtimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/showtimes", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, rateKey("rl", req))
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"seat-reservation/pkg/telemetry"
	"seat-reservation/pkg/utils"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// responseWriter captures the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Logger writes one line per request. Server errors log at error level.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := wrap(w)

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", rw.statusCode),
				zap.Int("bytes", rw.bytesWritten),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if id := telemetry.TraceID(r.Context()); id != "" {
				fields = append(fields, zap.String("trace_id", id))
			}
			if actor, ok := utils.GetActorFromContext(r.Context()); ok {
				fields = append(fields, zap.String("user_id", actor.UserID.String()))
			}

			if rw.statusCode >= http.StatusInternalServerError {
				logger.Error("HTTP request", fields...)
				return
			}
			logger.Info("HTTP request", fields...)
		})
	}
}

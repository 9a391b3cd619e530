package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gotomicro/ego/core/elog"
)

// AccessLog writes one log line per request.
func AccessLog(logger *elog.Component) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			write := logger.Info
			if status >= http.StatusInternalServerError {
				write = logger.Error
			}
			write("request",
				elog.String("method", r.Method),
				elog.String("path", r.URL.Path),
				elog.Int("status", status),
				elog.Int("bytes", ww.BytesWritten()),
				elog.Any("latency", time.Since(start)),
				elog.String("request_id", chimw.GetReqID(r.Context())),
				elog.String("client", GetClientKey(r)))
		})
	}
}

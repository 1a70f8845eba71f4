package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
)

// Metrics records Prometheus request metrics. The chi wrapper keeps
// http.Hijacker available so websocket upgrades pass through.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(time.Since(start).Seconds())
	})
}

// normalizePath normalizes paths to avoid high cardinality in metrics.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/rooms/") && strings.HasSuffix(path, "/messages"):
		return "/api/rooms/:roomId/messages"
	case strings.HasPrefix(path, "/api/messages/") && len(path) > len("/api/messages/"):
		return "/api/messages/:userId"
	case strings.HasPrefix(path, "/api/users/") && len(path) > len("/api/users/"):
		return "/api/users/:id"
	}
	return path
}

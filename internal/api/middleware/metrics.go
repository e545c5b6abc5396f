package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
)

// knownPaths are recorded verbatim; anything else outside /agents/ is
// folded into "other" so scanners cannot grow label cardinality.
var knownPaths = map[string]bool{
	"/":              true,
	"/api":           true,
	"/health":        true,
	"/metrics":       true,
	"/stats":         true,
	"/upload":        true,
	"/uploads":       true,
	"/agents":        true,
	"/agents/search": true,
}

// Metrics records request count, latency and in-flight requests.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPInFlight.Inc()
		defer metrics.HTTPInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/agents/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/quote") {
			return "/agents/:id/quote"
		}
		if !strings.Contains(rest, "/") {
			return "/agents/:id"
		}
	}
	return "other"
}

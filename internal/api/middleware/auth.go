package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
)

// APIKeyHeader carries the shared gateway secret.
const APIKeyHeader = "x-api-key"

// AuthMiddleware guards upload endpoints with a shared API key.
type AuthMiddleware struct {
	key    []byte
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware. An empty key rejects
// every request.
func NewAuthMiddleware(apiKey string, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{key: []byte(apiKey), logger: logger}
}

// RequireAPIKey rejects requests whose x-api-key does not match before the
// handler runs.
func (m *AuthMiddleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.valid(r.Header.Get(APIKeyHeader)) {
			metrics.BlockedRequests.WithLabelValues("api_key").Inc()
			m.logger.Warn().
				Str("type", "security").
				Str("event", "unauthorized").
				Str("ip", RealIP(r)).
				Str("endpoint", r.URL.Path).
				Msg("rejected request with bad api key")
			jsonError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) valid(presented string) bool {
	if len(m.key) == 0 || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), m.key) == 1
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

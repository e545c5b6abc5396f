package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKey(t *testing.T) {
	auth := NewAuthMiddleware("s3cret", zerolog.Nop())

	cases := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"prefix", "s3c", http.StatusUnauthorized},
		{"valid", "s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{}`))
			if tc.key != "" {
				req.Header.Set(APIKeyHeader, tc.key)
			}
			rec := httptest.NewRecorder()
			auth.RequireAPIKey(okHandler(&called)).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status == http.StatusOK, called)
			if tc.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireAPIKeyEmptyConfiguredKey(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set(APIKeyHeader, "")
	rec := httptest.NewRecorder()
	NewAuthMiddleware("", zerolog.Nop()).RequireAPIKey(okHandler(&called)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMaxBodySize(t *testing.T) {
	mw := MaxBodySize(16, 64)
	body := strings.Repeat("x", 32)

	called := false
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mw(okHandler(&called)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)

	req = httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec = httptest.NewRecorder()
	mw(okHandler(&called)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestValidateRequest(t *testing.T) {
	cases := []struct {
		method, path, ct string
		status           int
	}{
		{http.MethodPost, "/upload", "application/json", http.StatusOK},
		{http.MethodPut, "/upload", "multipart/form-data; boundary=x", http.StatusOK},
		{http.MethodPost, "/upload", "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "/agents/../etc", "", http.StatusBadRequest},
		{http.MethodGet, "/agents?q=<script>", "", http.StatusBadRequest},
		{http.MethodGet, "/agents/search?q=https://agents.example", "", http.StatusOK},
		{http.MethodGet, "/agents/search?q=../secrets", "", http.StatusBadRequest},
		{http.MethodGet, "//agents", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		called := false
		req := httptest.NewRequest(tc.method, "/", strings.NewReader("{}"))
		req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tc.path, "?")
		if tc.ct != "" {
			req.Header.Set("Content-Type", tc.ct)
		}
		rec := httptest.NewRecorder()
		ValidateRequest(okHandler(&called)).ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "%s %s %s", tc.method, tc.path, tc.ct)
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/agents/:id", normalizePath("/agents/42"))
	assert.Equal(t, "/agents/:id/quote", normalizePath("/agents/42/quote"))
	assert.Equal(t, "/agents/search", normalizePath("/agents/search"))
	assert.Equal(t, "/agents", normalizePath("/agents"))
	assert.Equal(t, "/upload", normalizePath("/upload"))
	assert.Equal(t, "other", normalizePath("/wp-login.php"))
	assert.Equal(t, "other", normalizePath("/agents/1/owner/x"))
}

func TestFindLimitPrefersLongestPattern(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	limit := rl.findLimit(httptest.NewRequest(http.MethodGet, "/agents/search?q=x", nil))
	require.NotNil(t, limit)
	assert.Equal(t, 30, limit.Requests)

	limit = rl.findLimit(httptest.NewRequest(http.MethodGet, "/agents/7", nil))
	require.NotNil(t, limit)
	assert.Equal(t, 120, limit.Requests)

	limit = rl.findLimit(httptest.NewRequest(http.MethodPost, "/upload", nil))
	require.NotNil(t, limit)
	assert.Equal(t, time.Hour, limit.Window)

	assert.Nil(t, rl.findLimit(httptest.NewRequest(http.MethodGet, "/health", nil)))
}

func TestUploadMethodsShareScope(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	post := rl.findLimit(httptest.NewRequest(http.MethodPost, "/upload", nil))
	put := rl.findLimit(httptest.NewRequest(http.MethodPut, "/upload", nil))
	list := rl.findLimit(httptest.NewRequest(http.MethodGet, "/uploads", nil))
	require.NotNil(t, post)
	require.NotNil(t, put)
	require.NotNil(t, list)

	assert.Equal(t, limitKey(post.Scope, "1.2.3.4"), limitKey(put.Scope, "1.2.3.4"))
	assert.NotEqual(t, limitKey(post.Scope, "1.2.3.4"), limitKey(list.Scope, "1.2.3.4"))
	assert.Equal(t, "market:ratelimit:upload:1.2.3.4", limitKey(post.Scope, "1.2.3.4"))
}

func TestWhitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{Whitelist: []string{"10.0.0.0/8", "192.168.1.5", "bogus/99"}})
	assert.True(t, rl.isWhitelisted("10.1.2.3"))
	assert.True(t, rl.isWhitelisted("192.168.1.5"))
	assert.False(t, rl.isWhitelisted("192.168.1.6"))
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:5555"
	assert.Equal(t, "1.2.3.4", RealIP(req))

	req.Header.Set("X-Forwarded-For", "9.9.9.9, 8.8.8.8")
	assert.Equal(t, "9.9.9.9", RealIP(req))
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	deny := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{}`))
	req.Header.Set(APIKeyHeader, "wrong")
	Logger(logger)(deny).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(401), line["status"])
	assert.Equal(t, true, line["api_key"])
	assert.Equal(t, "/upload", line["path"])

	buf.Reset()
	var called bool
	Logger(logger)(okHandler(&called)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/agents", nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.True(t, called)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, false, line["api_key"])
}

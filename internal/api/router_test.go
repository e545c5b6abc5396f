package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/handlers"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
)

type countingPinner struct {
	calls int
}

func (p *countingPinner) PinJSON(ctx context.Context, doc interface{}, name string) (*ipfs.PinResult, error) {
	p.calls++
	return &ipfs.PinResult{CID: "bafy", URL: "https://ipfs.io/ipfs/bafy"}, nil
}

func (p *countingPinner) PinFile(ctx context.Context, filename, mimeType string, r io.Reader) (*ipfs.PinResult, error) {
	p.calls++
	return &ipfs.PinResult{CID: "bafy"}, nil
}

func newTestRouter(p ipfs.Pinner) http.Handler {
	h := handlers.NewHandler(nil, nil, handlers.Deps{Pinner: p}, zerolog.Nop())
	return NewRouter(zerolog.Nop(), h, nil, Options{APIKey: "k"})
}

const validDoc = `{"name":"A","category":"Other","endpoint":"https://a.example"}`

func TestUploadRequiresAPIKey(t *testing.T) {
	p := &countingPinner{}
	router := newTestRouter(p)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(validDoc))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	assert.Zero(t, p.calls)
}

func TestUploadWithAPIKey(t *testing.T) {
	p := &countingPinner{}
	router := newTestRouter(p)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(validDoc))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", "k")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"ipfsLink":"ipfs://bafy"`)
	assert.Equal(t, 1, p.calls)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&countingPinner{})

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "x-api-key,content-type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAgentsWithoutLedger(t *testing.T) {
	router := newTestRouter(&countingPinner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

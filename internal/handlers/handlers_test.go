package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	uploads []models.UploadRecord
	pingErr error
}

func (s *memStore) Close()                         {}
func (s *memStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memStore) RecordUpload(ctx context.Context, rec *models.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = testNow.Add(-time.Minute)
	}
	s.uploads = append([]models.UploadRecord{*rec}, s.uploads...)
	return nil
}

func (s *memStore) GetUpload(ctx context.Context, cid string) (*models.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.uploads {
		if s.uploads[i].CID == cid {
			rec := s.uploads[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListUploads(ctx context.Context, limit, offset int) ([]models.UploadRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.uploads)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]models.UploadRecord(nil), s.uploads[offset:end]...), total, nil
}

func (s *memStore) CountUploads(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.uploads)), nil
}

func (s *memStore) GetMostRecentUpload(ctx context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.uploads) == 0 {
		return nil, nil
	}
	t := s.uploads[0].CreatedAt
	return &t, nil
}

type stubPinner struct {
	mu       sync.Mutex
	calls    int
	lastDoc  interface{}
	lastName string
	lastFile string
	lastMime string
	fileData string
	err      error
}

func (p *stubPinner) PinJSON(ctx context.Context, doc interface{}, name string) (*ipfs.PinResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastDoc = doc
	p.lastName = name
	if p.err != nil {
		return nil, p.err
	}
	return &ipfs.PinResult{CID: "bafydoc", URI: "ipfs://bafydoc", URL: "https://ipfs.io/ipfs/bafydoc", Size: 120}, nil
}

func (p *stubPinner) PinFile(ctx context.Context, filename, mimeType string, r io.Reader) (*ipfs.PinResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastFile = filename
	p.lastMime = mimeType
	data, _ := io.ReadAll(r)
	p.fileData = string(data)
	if p.err != nil {
		return nil, p.err
	}
	return &ipfs.PinResult{CID: "bafyimg", URL: "https://ipfs.io/ipfs/bafyimg", MimeType: "image/png"}, nil
}

type staticDirectory struct {
	snap *models.DirectorySnapshot
}

func (d *staticDirectory) Snapshot() *models.DirectorySnapshot { return d.snap }

func (d *staticDirectory) Get(id uint64) (models.Listing, bool) {
	if d.snap == nil {
		return models.Listing{}, false
	}
	for _, l := range d.snap.Listings {
		if l.Agent.ID == id {
			return l, true
		}
	}
	return models.Listing{}, false
}

type mapMetadata map[string]*models.AgentMetadata

func (m mapMetadata) Fetch(ctx context.Context, ref string) (*models.AgentMetadata, error) {
	if doc, ok := m[ipfs.CID(ref)]; ok {
		return doc, nil
	}
	return nil, errors.New("not found")
}

type harness struct {
	store  *memStore
	pinner *stubPinner
	router http.Handler
}

func testDirectory() *staticDirectory {
	renter := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return &staticDirectory{snap: &models.DirectorySnapshot{
		TakenAt: testNow.Add(-2 * time.Second),
		Listings: []models.Listing{
			{Agent: models.Agent{ID: 1, Owner: owner, ContentRef: "ipfs://bafyone", PricePerSecond: big.NewInt(1000), BasePrice: big.NewInt(5000), Available: true, CreatedAt: testNow.Add(-time.Hour)}},
			{
				Agent:  models.Agent{ID: 2, Owner: owner, ContentRef: "ipfs://bafytwo", PricePerSecond: big.NewInt(10), BasePrice: big.NewInt(0), Available: true, CreatedAt: testNow.Add(-30 * time.Minute)},
				Rental: &models.Rental{Renter: renter, StartAt: testNow.Add(-time.Minute), EndAt: testNow.Add(time.Hour), PricePaid: big.NewInt(36000)},
			},
			{Agent: models.Agent{ID: 3, Owner: owner, ContentRef: "ipfs://bafythree", PricePerSecond: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), BasePrice: big.NewInt(0), Available: false, CreatedAt: testNow.Add(-10 * time.Minute)}},
		},
	}}
}

func testMetadata() mapMetadata {
	return mapMetadata{
		"bafyone":   {Name: "Summarizer", Description: "Summarizes long documents", Category: "Analytics", Endpoint: "https://one.example", Tags: []string{"nlp"}},
		"bafytwo":   {Name: "Chatty", Description: "Conversational helper", Category: "Conversational", Endpoint: "https://two.example"},
		"bafythree": {Name: "Painter", Description: "Generates images", Category: "Creative", Endpoint: "https://three.example", Metadata: models.MetadataDetails{Capabilities: []string{"images", "documents"}}},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := &memStore{}
	pinner := &stubPinner{}
	h := NewHandler(st, nil, Deps{
		Pinner:    pinner,
		Directory: testDirectory(),
		Metadata:  testMetadata(),
		Guard:     pricing.NewGuard(nil),
		Now:       func() time.Time { return testNow },
	}, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/upload", h.UploadMetadata)
	r.Put("/upload", h.UploadFile)
	r.Get("/uploads", h.ListUploads)
	r.Get("/agents", h.ListAgents)
	r.Get("/agents/search", h.Search)
	r.Get("/agents/{id}", h.GetAgent)
	r.Get("/agents/{id}/quote", h.QuoteAgent)
	r.Get("/stats", h.Stats)
	r.Get("/health", h.Health)
	return &harness{store: st, pinner: pinner, router: r}
}

func (hs *harness) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestUploadMetadataSuccess(t *testing.T) {
	hs := newHarness(t)
	body := `{"name":"Summarizer","description":"d","category":"Analytics","endpoint":"https://x.example","extra":{"keep":true}}`

	rec := hs.do(t, http.MethodPost, "/upload", "application/json", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Metadata uploaded successfully", resp.Message)
	assert.Equal(t, "bafydoc", resp.IpfsHash)
	assert.Equal(t, "ipfs://bafydoc", resp.IpfsLink)
	assert.Equal(t, "https://ipfs.io/ipfs/bafydoc", resp.URL)

	doc, ok := hs.pinner.lastDoc.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, doc, "extra", "unknown fields are pinned as sent")
	assert.Equal(t, "Summarizer", hs.pinner.lastName)

	require.Len(t, hs.store.uploads, 1)
	assert.Equal(t, models.UploadJSON, hs.store.uploads[0].Kind)
	assert.Equal(t, "Analytics", hs.store.uploads[0].Category)
}

func TestUploadMetadataMissingFields(t *testing.T) {
	hs := newHarness(t)

	for _, body := range []string{
		`{"name":"A","endpoint":"https://x.example"}`,
		`{"name":"","endpoint":"https://x.example","category":"Other"}`,
		`{"name":"A","category":"Other"}`,
	} {
		rec := hs.do(t, http.MethodPost, "/upload", "application/json", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Missing required fields"}`, rec.Body.String())
	}
	assert.Zero(t, hs.pinner.calls)
	assert.Empty(t, hs.store.uploads)
}

func TestUploadMetadataInvalidJSON(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(t, http.MethodPost, "/upload", "application/json", strings.NewReader(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())
	assert.Zero(t, hs.pinner.calls)
}

func TestUploadMetadataRelayFailure(t *testing.T) {
	hs := newHarness(t)
	hs.pinner.err = &ipfs.PinError{Status: 401, Details: `{"error":"Invalid API key"}`}

	body := `{"name":"A","category":"Other","endpoint":"https://x.example"}`
	rec := hs.do(t, http.MethodPost, "/upload", "application/json", strings.NewReader(body))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Upload failed","details":{"error":"Invalid API key"}}`, rec.Body.String())
	assert.Empty(t, hs.store.uploads)
}

func TestUploadFile(t *testing.T) {
	hs := newHarness(t)

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("pngdata"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := hs.do(t, http.MethodPut, "/upload", mw.FormDataContentType(), strings.NewReader(buf.String()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp FileUploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "bafyimg", resp.CID)
	assert.Equal(t, "image/png", resp.MimeType)
	assert.EqualValues(t, 7, resp.Size)
	assert.Equal(t, "logo.png", hs.pinner.lastFile)
	assert.Equal(t, "pngdata", hs.pinner.fileData)
}

func TestUploadFileMissingField(t *testing.T) {
	hs := newHarness(t)

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	rec := hs.do(t, http.MethodPut, "/upload", mw.FormDataContentType(), strings.NewReader(buf.String()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hs.pinner.calls)
}

// pinataRouter serves the upload routes through a real Pinata client backed
// by an in-process fake of the pinning API.
func pinataRouter(t *testing.T) http.Handler {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pinning/pinJSONToIPFS":
			w.Write([]byte(`{"IpfsHash":"bafydoc","PinSize":120}`))
		case "/pinning/pinFileToIPFS":
			w.Write([]byte(`{"IpfsHash":"bafyimg","PinSize":7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	pinner := ipfs.NewPinataClient(srv.URL, "key", "secret", ipfs.NewGateway("https://gw.example/ipfs/"), zerolog.Nop())
	h := NewHandler(&memStore{}, nil, Deps{Pinner: pinner, Now: func() time.Time { return testNow }}, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/upload", h.UploadMetadata)
	r.Put("/upload", h.UploadFile)
	return r
}

func fileForm(t *testing.T, filename, contentType, data string) (string, string) {
	t.Helper()
	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.String()
}

func TestUploadFileKeepsDeclaredMimeType(t *testing.T) {
	router := pinataRouter(t)

	tests := []struct {
		name     string
		filename string
		declared string
		want     string
	}{
		{"declared type without extension", "logo", "image/png", "image/png"},
		{"declared type beats extension", "logo.png", "image/webp", "image/webp"},
		{"octet-stream falls back to extension", "logo.gif", "application/octet-stream", "image/gif"},
		{"nothing declared falls back to extension", "logo.svg", "", "image/svg+xml"},
		{"unknown everywhere", "logo", "", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body := fileForm(t, tt.filename, tt.declared, "pngdata")
			req := httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader(body))
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp FileUploadResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.want, resp.MimeType)
		})
	}
}

func TestUploadFilePassesDeclaredTypeToPinner(t *testing.T) {
	hs := newHarness(t)

	ct, body := fileForm(t, "logo", "image/png", "pngdata")
	rec := hs.do(t, http.MethodPut, "/upload", ct, strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "logo", hs.pinner.lastFile)
	assert.Equal(t, "image/png", hs.pinner.lastMime)
}

func pinSamples(t *testing.T, kind string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.PinLatency.WithLabelValues(kind).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestUploadObservesPinLatencyOnce(t *testing.T) {
	router := pinataRouter(t)

	before := pinSamples(t, "json")
	req := httptest.NewRequest(http.MethodPost, "/upload",
		strings.NewReader(`{"name":"A","category":"Other","endpoint":"https://a.example"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, before+1, pinSamples(t, "json"))

	before = pinSamples(t, "file")
	ct, body := fileForm(t, "logo.png", "image/png", "pngdata")
	req = httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, before+1, pinSamples(t, "file"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Summarizer", sanitizeName("  Summ\x00arizer\n "))

	// 99 ASCII bytes followed by a 3-byte rune straddling the limit.
	long := strings.Repeat("a", 99) + "日本"
	got := sanitizeName(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 99), got)

	emoji := sanitizeName(strings.Repeat("🤖", 40))
	assert.True(t, utf8.ValidString(emoji))
	assert.LessOrEqual(t, len(emoji), maxNameBytes)
	assert.Equal(t, strings.Repeat("🤖", 25), emoji)
}

func TestListUploadsNewestFirst(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	require.NoError(t, hs.store.RecordUpload(ctx, &models.UploadRecord{CID: "old", Kind: models.UploadJSON}))
	require.NoError(t, hs.store.RecordUpload(ctx, &models.UploadRecord{CID: "new", Kind: models.UploadFile}))

	rec := hs.do(t, http.MethodGet, "/uploads?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UploadsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Uploads, 1)
	assert.Equal(t, "new", resp.Uploads[0].CID)
}

func TestListAgentsStatusFilter(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(t, http.MethodGet, "/agents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all AgentsResponse
	decode(t, rec, &all)
	assert.Equal(t, 3, all.Total)

	rec = hs.do(t, http.MethodGet, "/agents?status=rented", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rented AgentsResponse
	decode(t, rec, &rented)
	require.Len(t, rented.Agents, 1)
	assert.EqualValues(t, 2, rented.Agents[0].ID)
	assert.EqualValues(t, 3600, rented.Agents[0].TimeRemainingSecs)

	rec = hs.do(t, http.MethodGet, "/agents?status=busy", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAgentsBeforeFirstRefresh(t *testing.T) {
	h := NewHandler(nil, nil, Deps{Directory: &staticDirectory{}}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ListAgents(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAgent(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(t, http.MethodGet, "/agents/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.AgentView
	decode(t, rec, &view)
	assert.Equal(t, models.StatusFree, view.Status)
	require.NotNil(t, view.Metadata)
	assert.Equal(t, "Summarizer", view.Metadata.Name)

	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodGet, "/agents/99", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/0", "", nil).Code)
}

func TestQuoteAgent(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(t, http.MethodGet, "/agents/1/quote?duration=3600", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q QuoteResponse
	decode(t, rec, &q)
	assert.EqualValues(t, 1, q.AgentID)
	assert.EqualValues(t, 3600, q.DurationSeconds)
	assert.Equal(t, "3605000", q.TotalWei)
	assert.False(t, q.Extension)

	rec = hs.do(t, http.MethodGet, "/agents/1/quote?duration=1h&extend=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &q)
	assert.Equal(t, "3600000", q.TotalWei)
	assert.True(t, q.Extension)
}

func TestQuoteAgentRejections(t *testing.T) {
	hs := newHarness(t)

	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/1/quote", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/1/quote?duration=0", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/1/quote?duration=soon", "", nil).Code)

	// one whole token per second for an hour is far past the default bound
	rec := hs.do(t, http.MethodGet, "/agents/3/quote?duration=3600", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), pricing.ErrPriceSanityExceeded.Error())
}

func TestSearch(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(t, http.MethodGet, "/agents/search?q=documents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	decode(t, rec, &resp)
	require.Equal(t, 2, resp.Total)
	assert.EqualValues(t, 1, resp.Results[0].ID)
	assert.EqualValues(t, 3, resp.Results[1].ID)

	rec = hs.do(t, http.MethodGet, "/agents/search?category=conversational", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Equal(t, 1, resp.Total)
	assert.EqualValues(t, 2, resp.Results[0].ID)

	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/search", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/agents/search?category=Unknown", "", nil).Code)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"summarize", "pdf", "files"}, tokenize("Summarize the PDF files"))
	assert.Empty(t, tokenize("a the of"))
	assert.Len(t, tokenize("one two three four five six seven"), 5)
}

func TestStats(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.store.RecordUpload(context.Background(), &models.UploadRecord{CID: "c", Kind: models.UploadJSON, Size: 2048}))

	rec := hs.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp.TotalAgents)
	assert.Equal(t, 1, resp.FreeAgents)
	assert.Equal(t, 1, resp.RentedAgents)
	assert.Equal(t, 1, resp.UnavailableAgents)
	assert.EqualValues(t, 1, resp.TotalUploads)
	assert.Equal(t, "1 minute ago", resp.LastUpload)
	require.Len(t, resp.NewestAgents, 3)
	assert.EqualValues(t, 3, resp.NewestAgents[0].ID)
	require.Len(t, resp.RecentUploads, 1)
	assert.Equal(t, "2.0 kB", resp.RecentUploads[0].Size)
}

func TestHealth(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "pass", resp.Checks["store"].Status)
	assert.Equal(t, "pass", resp.Checks["directory"].Status)

	hs.store.pingErr = errors.New("down")
	rec = hs.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// DefaultGateway is the public HTTP gateway used when none is configured.
const DefaultGateway = "https://ipfs.io/ipfs/"

const scheme = "ipfs://"

// URI returns the content URI stored on the ledger for cid.
func URI(cid string) string {
	return scheme + cid
}

// CID strips the ipfs:// scheme from ref if present.
func CID(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), scheme)
}

// Gateway maps content references to HTTP URLs.
type Gateway struct {
	base string
}

// NewGateway creates a resolver rooted at base. An empty base uses DefaultGateway.
func NewGateway(base string) *Gateway {
	if base == "" {
		base = DefaultGateway
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Gateway{base: base}
}

// URL returns the HTTP URL of cid.
func (g *Gateway) URL(cid string) string {
	return g.base + cid
}

// Resolve turns an ipfs:// URI into a gateway URL; anything else is returned
// unchanged.
func (g *Gateway) Resolve(uri string) string {
	if strings.HasPrefix(uri, scheme) {
		return g.URL(strings.TrimPrefix(uri, scheme))
	}
	return uri
}

// MetadataFetcher retrieves agent documents through a gateway. Documents are
// content addressed, so cached entries never go stale.
type MetadataFetcher struct {
	gateway    *Gateway
	cache      *lru.Cache[string, *models.AgentMetadata]
	HTTPClient *http.Client
	logger     zerolog.Logger
}

// NewMetadataFetcher creates a fetcher caching up to size documents.
func NewMetadataFetcher(gw *Gateway, size int, logger zerolog.Logger) (*MetadataFetcher, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, *models.AgentMetadata](size)
	if err != nil {
		return nil, err
	}
	return &MetadataFetcher{
		gateway:    gw,
		cache:      cache,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "metadata").Logger(),
	}, nil
}

// Fetch returns the document ref points to. ref may be a bare CID or an
// ipfs:// URI.
func (f *MetadataFetcher) Fetch(ctx context.Context, ref string) (*models.AgentMetadata, error) {
	cid := CID(ref)
	if cid == "" {
		return nil, fmt.Errorf("empty content reference")
	}
	if doc, ok := f.cache.Get(cid); ok {
		metrics.MetadataCacheHits.WithLabelValues("hit").Inc()
		return doc, nil
	}
	metrics.MetadataCacheHits.WithLabelValues("miss").Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.gateway.URL(cid), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: gateway returned %s", cid, resp.Status)
	}

	var doc models.AgentMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cid, err)
	}

	f.cache.Add(cid, &doc)
	f.logger.Debug().Str("cid", cid).Msg("metadata cached")
	return &doc, nil
}

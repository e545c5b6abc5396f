package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/store"
)

// Directory is the read side of the agent directory.
type Directory interface {
	Snapshot() *models.DirectorySnapshot
	Get(id uint64) (models.Listing, bool)
}

// MetadataSource resolves a content reference to an agent document.
type MetadataSource interface {
	Fetch(ctx context.Context, ref string) (*models.AgentMetadata, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the optional collaborators of a Handler. Nil members disable the
// routes that need them.
type Deps struct {
	Pinner    ipfs.Pinner
	Directory Directory
	Metadata  MetadataSource
	Ledger    Pinger
	Guard     pricing.Guard
	Region    string
	Now       func() time.Time
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store     store.DataStore
	redis     *store.RedisStore
	pinner    ipfs.Pinner
	directory Directory
	metadata  MetadataSource
	ledger    Pinger
	guard     pricing.Guard
	region    string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewHandler creates a new Handler with the given stores.
func NewHandler(st store.DataStore, redis *store.RedisStore, deps Deps, logger zerolog.Logger) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:     st,
		redis:     redis,
		pinner:    deps.Pinner,
		directory: deps.Directory,
		metadata:  deps.Metadata,
		ledger:    deps.Ledger,
		guard:     deps.Guard,
		region:    deps.Region,
		now:       now,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

const maxNameBytes = 100

// sanitizeName trims and limits name to maxNameBytes, removing control
// characters. The cut never splits a multi-byte rune.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > maxNameBytes {
		n := maxNameBytes
		for n > 0 && !utf8.RuneStart(name[n]) {
			n--
		}
		name = name[:n]
	}

	return name
}

// pageParams reads limit/offset query parameters, clamping limit to 1..100.
func pageParams(r *http.Request, def int) (int, int) {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if o, err := strconv.Atoi(s); err == nil && o > 0 {
			offset = o
		}
	}
	return limit, offset
}

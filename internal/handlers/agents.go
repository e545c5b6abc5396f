package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// AgentsResponse is the directory listing.
type AgentsResponse struct {
	Agents    []models.AgentView `json:"agents"`
	Total     int                `json:"total"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// QuoteResponse is a priced rental.
type QuoteResponse struct {
	AgentID   uint64 `json:"agentId"`
	Extension bool   `json:"extension"`
	pricing.QuoteDisplay
}

// snapshot returns the current directory snapshot or writes a 503.
func (h *Handler) snapshot(w http.ResponseWriter) *models.DirectorySnapshot {
	if h.directory == nil {
		h.Error(w, http.StatusServiceUnavailable, "ledger not configured")
		return nil
	}
	snap := h.directory.Snapshot()
	if snap == nil {
		h.Error(w, http.StatusServiceUnavailable, "directory not ready")
		return nil
	}
	return snap
}

// ListAgents returns every agent with its derived status.
// ?status=free|rented|unavailable narrows the list.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	var status models.Status
	switch s := models.Status(r.URL.Query().Get("status")); s {
	case "", models.StatusFree, models.StatusRented, models.StatusUnavailable:
		status = s
	default:
		h.Error(w, http.StatusBadRequest, "status must be free, rented or unavailable")
		return
	}

	snap := h.snapshot(w)
	if snap == nil {
		return
	}

	views := snap.Views(h.now())
	if status != "" {
		filtered := views[:0]
		for _, v := range views {
			if v.Status == status {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	h.JSON(w, http.StatusOK, AgentsResponse{
		Agents:    views,
		Total:     len(views),
		UpdatedAt: snap.TakenAt,
	})
}

// GetAgent returns one agent with its resolved metadata document.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.listing(w, r)
	if !ok {
		return
	}

	view := models.NewAgentView(&listing.Agent, listing.Rental, h.now())
	if h.metadata != nil && listing.Agent.ContentRef != "" {
		doc, err := h.metadata.Fetch(r.Context(), listing.Agent.ContentRef)
		if err != nil {
			h.logger.Warn().Err(err).Uint64("agent", listing.Agent.ID).Msg("metadata unavailable")
		} else {
			view.Metadata = doc
		}
	}

	h.JSON(w, http.StatusOK, view)
}

// QuoteAgent prices a rental of the agent for ?duration= (seconds or a form
// like "1h"). ?extend=true prices an extension, which carries no base fee.
func (h *Handler) QuoteAgent(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("duration")
	if raw == "" {
		h.Error(w, http.StatusBadRequest, "duration is required")
		return
	}
	secs, err := units.ParseDurationString(raw)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	extension, _ := strconv.ParseBool(r.URL.Query().Get("extend"))

	listing, ok := h.listing(w, r)
	if !ok {
		return
	}

	base := listing.Agent.BasePrice
	if extension || base == nil {
		base = new(big.Int)
	}
	price := listing.Agent.PricePerSecond
	if price == nil {
		price = new(big.Int)
	}

	q, err := pricing.NewQuote(price, base, secs, h.guard)
	switch {
	case errors.Is(err, pricing.ErrPriceSanityExceeded):
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.JSON(w, http.StatusOK, QuoteResponse{
		AgentID:      listing.Agent.ID,
		Extension:    extension,
		QuoteDisplay: q.Display(),
	})
}

// listing resolves the {id} URL parameter against the directory, writing
// the error response when it cannot.
func (h *Handler) listing(w http.ResponseWriter, r *http.Request) (models.Listing, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		h.Error(w, http.StatusBadRequest, "invalid agent ID format")
		return models.Listing{}, false
	}
	if h.snapshot(w) == nil {
		return models.Listing{}, false
	}
	listing, ok := h.directory.Get(id)
	if !ok {
		h.Error(w, http.StatusNotFound, "agent not found")
		return models.Listing{}, false
	}
	return listing, true
}

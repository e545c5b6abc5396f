package handlers

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

var searchWordRegex = regexp.MustCompile(`[a-z0-9]+`)

// stopWords are common words to exclude from search
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"it": true, "that": true, "this": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "like": true,
}

// searchFetchLimit bounds concurrent metadata fetches for one search.
const searchFetchLimit = 8

// SearchResult is an agent matching a search, best first.
type SearchResult struct {
	models.AgentView
	Score int `json:"score_match"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Query    string         `json:"query"`
	Category string         `json:"category,omitempty"`
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
}

// tokenize extracts searchable words from text.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	words := searchWordRegex.FindAllString(lower, -1)

	seen := make(map[string]bool)
	result := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 2 && !seen[w] && !stopWords[w] {
			seen[w] = true
			result = append(result, w)
		}
	}

	if len(result) > 5 {
		result = result[:5]
	}

	return result
}

// matchScore counts how many query tokens appear in the document's
// searchable text.
func matchScore(doc *models.AgentMetadata, tokens []string) int {
	parts := []string{doc.Name, doc.Description, doc.Category}
	parts = append(parts, doc.Tags...)
	parts = append(parts, doc.Metadata.Capabilities...)

	words := make(map[string]bool)
	for _, w := range searchWordRegex.FindAllString(strings.ToLower(strings.Join(parts, " ")), -1) {
		words[w] = true
	}

	score := 0
	for _, t := range tokens {
		if words[t] {
			score++
		}
	}
	return score
}

// Search finds agents whose metadata matches ?q=, optionally limited to
// ?category=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	if query == "" && category == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' or 'category' is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}
	if category != "" && !models.IsValidCategory(category) {
		h.Error(w, http.StatusBadRequest, "unknown category")
		return
	}
	if h.metadata == nil {
		h.Error(w, http.StatusServiceUnavailable, "metadata gateway not configured")
		return
	}

	snap := h.snapshot(w)
	if snap == nil {
		return
	}

	tokens := tokenize(query)
	if query != "" && len(tokens) == 0 {
		h.JSON(w, http.StatusOK, SearchResponse{Query: query, Category: category, Results: []SearchResult{}})
		return
	}

	results := h.searchListings(r.Context(), snap, tokens, category)

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:    query,
		Category: category,
		Results:  results,
		Total:    len(results),
	})
}

func (h *Handler) searchListings(ctx context.Context, snap *models.DirectorySnapshot, tokens []string, category string) []SearchResult {
	now := h.now()
	var (
		mu      sync.Mutex
		results = make([]SearchResult, 0)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchFetchLimit)
	for i := range snap.Listings {
		l := snap.Listings[i]
		if l.Agent.ContentRef == "" {
			continue
		}
		g.Go(func() error {
			doc, err := h.metadata.Fetch(gctx, l.Agent.ContentRef)
			if err != nil {
				h.logger.Debug().Err(err).Uint64("agent", l.Agent.ID).Msg("skipping agent without metadata")
				return nil
			}
			if category != "" && !strings.EqualFold(doc.Category, category) {
				return nil
			}
			score := matchScore(doc, tokens)
			if len(tokens) > 0 && score == 0 {
				return nil
			}

			view := models.NewAgentView(&l.Agent, l.Rental, now)
			view.Metadata = doc
			mu.Lock()
			results = append(results, SearchResult{AgentView: view, Score: score})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

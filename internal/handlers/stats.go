package handlers

import (
	"net/http"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// UploadPreview represents a recent upload on the stats page.
type UploadPreview struct {
	CID      string `json:"cid"`
	Kind     string `json:"kind"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Size     string `json:"size"`
	Ago      string `json:"ago"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalAgents       int                `json:"total_agents"`
	FreeAgents        int                `json:"free_agents"`
	RentedAgents      int                `json:"rented_agents"`
	UnavailableAgents int                `json:"unavailable_agents"`
	TotalUploads      int64              `json:"total_uploads"`
	LastUpload        string             `json:"last_upload"`
	DirectoryUpdated  string             `json:"directory_updated,omitempty"`
	NewestAgents      []models.AgentView `json:"newest_agents"`
	RecentUploads     []UploadPreview    `json:"recent_uploads"`
}

// Stats returns marketplace statistics for the landing page.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	resp := StatsResponse{
		LastUpload:    "no uploads yet",
		NewestAgents:  []models.AgentView{},
		RecentUploads: []UploadPreview{},
	}

	if h.directory != nil {
		if snap := h.directory.Snapshot(); snap != nil {
			views := snap.Views(now)
			resp.TotalAgents = len(views)
			for _, v := range views {
				switch v.Status {
				case models.StatusFree:
					resp.FreeAgents++
				case models.StatusRented:
					resp.RentedAgents++
				case models.StatusUnavailable:
					resp.UnavailableAgents++
				}
			}
			sort.Slice(views, func(i, j int) bool {
				return views[i].CreatedAt.After(views[j].CreatedAt)
			})
			if len(views) > 5 {
				views = views[:5]
			}
			resp.NewestAgents = views
			resp.DirectoryUpdated = humanize.RelTime(snap.TakenAt, now, "ago", "from now")
		}
	}

	if h.store != nil {
		total, err := h.store.CountUploads(ctx)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to count uploads")
			return
		}
		resp.TotalUploads = total

		last, err := h.store.GetMostRecentUpload(ctx)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to get last upload")
			return
		}
		if last != nil {
			resp.LastUpload = humanize.RelTime(*last, now, "ago", "from now")
		}

		uploads, _, err := h.store.ListUploads(ctx, 5, 0)
		if err != nil {
			// Non-fatal, continue with empty uploads
			uploads = nil
		}
		for _, u := range uploads {
			resp.RecentUploads = append(resp.RecentUploads, UploadPreview{
				CID:      u.CID,
				Kind:     string(u.Kind),
				Name:     u.Name,
				Category: u.Category,
				Size:     humanize.Bytes(uint64(u.Size)),
				Ago:      humanize.RelTime(u.CreatedAt, now, "ago", "from now"),
			})
		}
	}

	h.JSON(w, http.StatusOK, resp)
}

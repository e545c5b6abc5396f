package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// maxFileMemory is how much of a multipart upload is kept in memory before
// spilling to disk.
const maxFileMemory = 1 << 20

// UploadResponse is the answer to a metadata upload.
type UploadResponse struct {
	Message  string `json:"message"`
	IpfsHash string `json:"ipfsHash"`
	IpfsLink string `json:"ipfsLink"`
	CID      string `json:"cid"`
	URL      string `json:"url"`
}

// FileUploadResponse is the answer to a file upload.
type FileUploadResponse struct {
	CID      string `json:"cid"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type uploadFailure struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details"`
}

// requiredUploadFields must be present and non-empty in every metadata upload.
var requiredUploadFields = []string{"name", "endpoint", "category"}

// UploadMetadata relays an agent document to the pinning provider.
// The document is pinned as sent; only the required fields are checked.
func (h *Handler) UploadMetadata(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		metrics.Uploads.WithLabelValues(string(models.UploadJSON), "rejected").Inc()
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	for _, field := range requiredUploadFields {
		if stringField(doc, field) == "" {
			metrics.Uploads.WithLabelValues(string(models.UploadJSON), "rejected").Inc()
			h.Error(w, http.StatusBadRequest, "Missing required fields")
			return
		}
	}

	if h.pinner == nil {
		h.Error(w, http.StatusServiceUnavailable, "pinning provider not configured")
		return
	}

	name := sanitizeName(stringField(doc, "name"))
	res, err := h.pinner.PinJSON(r.Context(), doc, name)
	if err != nil {
		h.uploadFailed(w, models.UploadJSON, err)
		return
	}
	metrics.Uploads.WithLabelValues(string(models.UploadJSON), "ok").Inc()

	size := res.Size
	if size == 0 {
		size = int64(len(body))
	}
	h.record(r, &models.UploadRecord{
		CID:      res.CID,
		Kind:     models.UploadJSON,
		Name:     name,
		Category: stringField(doc, "category"),
		MimeType: "application/json",
		Size:     size,
	})

	h.logger.Info().
		Str("cid", res.CID).
		Str("name", name).
		Msg("metadata uploaded")

	h.JSON(w, http.StatusOK, UploadResponse{
		Message:  "Metadata uploaded successfully",
		IpfsHash: res.CID,
		IpfsLink: ipfs.URI(res.CID),
		CID:      res.CID,
		URL:      res.URL,
	})
}

// UploadFile relays the multipart "file" field to the pinning provider.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFileMemory); err != nil {
		metrics.Uploads.WithLabelValues(string(models.UploadFile), "rejected").Inc()
		h.Error(w, http.StatusBadRequest, "multipart form with a file field is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.Uploads.WithLabelValues(string(models.UploadFile), "rejected").Inc()
		h.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if h.pinner == nil {
		h.Error(w, http.StatusServiceUnavailable, "pinning provider not configured")
		return
	}

	filename := sanitizeName(header.Filename)
	res, err := h.pinner.PinFile(r.Context(), filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.uploadFailed(w, models.UploadFile, err)
		return
	}
	metrics.Uploads.WithLabelValues(string(models.UploadFile), "ok").Inc()

	size := res.Size
	if size == 0 {
		size = header.Size
	}
	h.record(r, &models.UploadRecord{
		CID:      res.CID,
		Kind:     models.UploadFile,
		Name:     filename,
		MimeType: res.MimeType,
		Size:     size,
	})

	h.JSON(w, http.StatusOK, FileUploadResponse{
		CID:      res.CID,
		URL:      res.URL,
		MimeType: res.MimeType,
		Size:     size,
	})
}

// UploadsResponse lists pinned content.
type UploadsResponse struct {
	Uploads []models.UploadRecord `json:"uploads"`
	Total   int                   `json:"total"`
}

// ListUploads returns recent upload records, newest first.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.Error(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	limit, offset := pageParams(r, 20)

	uploads, total, err := h.store.ListUploads(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list uploads")
		h.Error(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []models.UploadRecord{}
	}

	h.JSON(w, http.StatusOK, UploadsResponse{Uploads: uploads, Total: total})
}

func (h *Handler) uploadFailed(w http.ResponseWriter, kind models.UploadKind, err error) {
	metrics.Uploads.WithLabelValues(string(kind), "failed").Inc()
	h.logger.Error().Err(err).Str("kind", string(kind)).Msg("upload failed")

	var details interface{} = err.Error()
	var pinErr *ipfs.PinError
	if errors.As(err, &pinErr) {
		details = pinErr.Details
		if json.Valid([]byte(pinErr.Details)) {
			details = json.RawMessage(pinErr.Details)
		}
	}
	h.JSON(w, http.StatusInternalServerError, uploadFailure{Error: "Upload failed", Details: details})
}

// record stores rec. A store failure does not undo a successful pin.
func (h *Handler) record(r *http.Request, rec *models.UploadRecord) {
	if h.store == nil {
		return
	}
	if err := h.store.RecordUpload(r.Context(), rec); err != nil {
		h.logger.Warn().Err(err).Str("cid", rec.CID).Msg("failed to record upload")
	}
}

func stringField(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}

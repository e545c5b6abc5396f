// Package market provides a client for the marketplace gateway API.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
)

// DefaultBaseURL is where a locally started gateway listens.
const DefaultBaseURL = "http://localhost:4000"

// Client is a gateway API client.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new gateway client. apiKey is only needed for uploads.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError is a non-2xx gateway answer.
type APIError struct {
	Status  int
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("gateway error %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and decodes a JSON answer into out.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader, authed bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string          `json:"error"`
			Details json.RawMessage `json:"details"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Error, Details: errResp.Details}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// UploadResponse is the answer to a metadata upload.
type UploadResponse struct {
	Message  string `json:"message"`
	IpfsHash string `json:"ipfsHash"`
	IpfsLink string `json:"ipfsLink"`
	CID      string `json:"cid"`
	URL      string `json:"url"`
}

// Upload pins an agent document through the gateway.
func (c *Client) Upload(ctx context.Context, doc *models.AgentMetadata) (*UploadResponse, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var resp UploadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/upload", "application/json", bytes.NewReader(body), true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Publish uploads doc and returns its content id.
func (c *Client) Publish(ctx context.Context, doc *models.AgentMetadata) (string, error) {
	resp, err := c.Upload(ctx, doc)
	if err != nil {
		return "", err
	}
	return resp.IpfsHash, nil
}

// FileUploadResponse is the answer to a file upload.
type FileUploadResponse struct {
	CID      string `json:"cid"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// UploadFile pins the contents of r as filename, declaring the MIME type
// its extension maps to.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*FileUploadResponse, error) {
	return c.UploadFileAs(ctx, filename, mime.TypeByExtension(filepath.Ext(filename)), r)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadFileAs pins the contents of r as filename with an explicit MIME type.
// An empty mimeType is sent as application/octet-stream.
func (c *Client) UploadFileAs(ctx context.Context, filename, mimeType string, r io.Reader) (*FileUploadResponse, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(filename))))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var resp FileUploadResponse
	if err := c.doRequest(ctx, http.MethodPut, "/upload", mw.FormDataContentType(), &buf, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AgentsResponse is the directory listing.
type AgentsResponse struct {
	Agents    []models.AgentView `json:"agents"`
	Total     int                `json:"total"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ListAgents lists agents, optionally filtered by status.
func (c *Client) ListAgents(ctx context.Context, status models.Status) (*AgentsResponse, error) {
	path := "/agents"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var resp AgentsResponse
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAgent returns one agent with its resolved metadata.
func (c *Client) GetAgent(ctx context.Context, id uint64) (*models.AgentView, error) {
	var resp models.AgentView
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/agents/%d", id), "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchResult is an agent matching a search.
type SearchResult struct {
	models.AgentView
	Score int `json:"score_match"`
}

// SearchResponse lists search matches, best first.
type SearchResponse struct {
	Query    string         `json:"query"`
	Category string         `json:"category,omitempty"`
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
}

// SearchAgents finds agents whose metadata matches query.
func (c *Client) SearchAgents(ctx context.Context, query, category string) (*SearchResponse, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if category != "" {
		q.Set("category", category)
	}
	var resp SearchResponse
	if err := c.doRequest(ctx, http.MethodGet, "/agents/search?"+q.Encode(), "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QuoteResponse is a priced rental.
type QuoteResponse struct {
	AgentID   uint64 `json:"agentId"`
	Extension bool   `json:"extension"`
	pricing.QuoteDisplay
}

// Quote prices renting (or extending) agent id for duration, e.g. "1h".
func (c *Client) Quote(ctx context.Context, id uint64, duration string, extension bool) (*QuoteResponse, error) {
	q := url.Values{}
	q.Set("duration", duration)
	if extension {
		q.Set("extend", "true")
	}
	var resp QuoteResponse
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/agents/%d/quote?%s", id, q.Encode()), "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadsResponse lists pinned content.
type UploadsResponse struct {
	Uploads []models.UploadRecord `json:"uploads"`
	Total   int                   `json:"total"`
}

// ListUploads returns recent uploads.
func (c *Client) ListUploads(ctx context.Context, limit, offset int) (*UploadsResponse, error) {
	var resp UploadsResponse
	path := fmt.Sprintf("/uploads?limit=%d&offset=%d", limit, offset)
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Region    string                 `json:"region,omitempty"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", "", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

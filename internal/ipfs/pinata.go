// Package ipfs pins content through Pinata and resolves content references
// through an HTTP gateway.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
)

// DefaultPinataURL is Pinata's API root.
const DefaultPinataURL = "https://api.pinata.cloud"

var ErrPinFailed = errors.New("pin failed")

// PinError is a non-2xx answer from the pinning provider. Details holds the
// provider's response body.
type PinError struct {
	Status  int
	Details string
}

func (e *PinError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrPinFailed, e.Status, e.Details)
}

func (e *PinError) Unwrap() error {
	return ErrPinFailed
}

// PinResult describes pinned content.
type PinResult struct {
	CID      string `json:"cid"`
	URI      string `json:"uri"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size"`
}

// Pinner pins documents and files.
type Pinner interface {
	PinJSON(ctx context.Context, doc interface{}, name string) (*PinResult, error)
	PinFile(ctx context.Context, filename, mimeType string, r io.Reader) (*PinResult, error)
}

// PinataClient talks to the Pinata pinning API with key/secret auth.
type PinataClient struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	Gateway    *Gateway
	HTTPClient *http.Client
	logger     zerolog.Logger
}

// NewPinataClient creates a client. An empty baseURL uses DefaultPinataURL.
func NewPinataClient(baseURL, apiKey, secretKey string, gw *Gateway, logger zerolog.Logger) *PinataClient {
	if baseURL == "" {
		baseURL = DefaultPinataURL
	}
	if gw == nil {
		gw = NewGateway("")
	}
	return &PinataClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		SecretKey:  secretKey,
		Gateway:    gw,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With().Str("component", "pinata").Logger(),
	}
}

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataJSONRequest struct {
	Content  interface{}     `json:"pinataContent"`
	Metadata *pinataMetadata `json:"pinataMetadata,omitempty"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

// PinJSON pins doc as a JSON document.
func (c *PinataClient) PinJSON(ctx context.Context, doc interface{}, name string) (*PinResult, error) {
	payload := pinataJSONRequest{Content: doc}
	if name != "" {
		payload.Metadata = &pinataMetadata{Name: name}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
	metrics.PinLatency.WithLabelValues("json").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("cid", resp.IpfsHash).Str("name", name).Msg("pinned document")
	return c.result(resp, "application/json"), nil
}

// PinFile pins the contents of r as filename. mimeType is the type the
// uploader declared; the file extension decides only when it is empty or
// application/octet-stream.
func (c *PinataClient) PinFile(ctx context.Context, filename, mimeType string, r io.Reader) (*PinResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mimeType = resolveMimeType(filename, mimeType)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filename)))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.do(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &buf)
	metrics.PinLatency.WithLabelValues("file").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("cid", resp.IpfsHash).Str("file", filename).Msg("pinned file")
	return c.result(resp, mimeType), nil
}

func (c *PinataClient) result(resp *pinataResponse, mimeType string) *PinResult {
	return &PinResult{
		CID:      resp.IpfsHash,
		URI:      URI(resp.IpfsHash),
		URL:      c.Gateway.URL(resp.IpfsHash),
		MimeType: mimeType,
		Size:     resp.PinSize,
	}
}

func (c *PinataClient) do(ctx context.Context, path, contentType string, body io.Reader) (*pinataResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", c.APIKey)
	req.Header.Set("pinata_secret_api_key", c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPinFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &PinError{Status: resp.StatusCode, Details: strings.TrimSpace(string(respBody))}
	}

	var out pinataResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPinFailed, err)
	}
	if out.IpfsHash == "" {
		return nil, &PinError{Status: resp.StatusCode, Details: "response carried no IpfsHash"}
	}
	return &out, nil
}

const octetStream = "application/octet-stream"

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".json": "application/json",
}

func resolveMimeType(filename, declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != octetStream {
		return declared
	}
	return mimeTypeFor(filename)
}

func mimeTypeFor(filename string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return octetStream
}

// Package client is the Go client for the import API. It wraps the REST
// endpoints and classifies failures so callers can tell a rejected request
// from a broken connection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mobidash/importd/internal/core"
)

const defaultTimeout = 60 * time.Second

// Client talks to one import server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadResult is the server's response to staging a file.
type UploadResult struct {
	Filename string              `json:"filename"`
	Filepath string              `json:"filepath"`
	FileSize int64               `json:"file_size"`
	Preview  *core.PreviewResult `json:"preview"`
}

// Upload stages a file on the server and returns its first preview.
func (c *Client) Upload(ctx context.Context, importType core.ImportType, filename string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("import_type", string(importType)); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/import/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.do(req, "upload", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Preview re-analyzes an already staged file.
func (c *Client) Preview(ctx context.Context, filepath string, importType core.ImportType) (*core.PreviewResult, error) {
	var resp struct {
		Preview *core.PreviewResult `json:"preview"`
	}
	err := c.postJSON(ctx, "/api/import/preview", "preview", map[string]string{
		"filepath":    filepath,
		"import_type": string(importType),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Preview, nil
}

// ValidateMapping asks the server whether a mapping covers all required fields.
func (c *Client) ValidateMapping(ctx context.Context, importType core.ImportType, mapping core.FieldMapping) (*core.MappingValidation, error) {
	var resp struct {
		Validation core.MappingValidation `json:"validation"`
	}
	err := c.postJSON(ctx, "/api/import/validate-mapping", "validate mapping", map[string]any{
		"import_type":    string(importType),
		"column_mapping": mapping,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Validation, nil
}

// ExecuteParams describes one commit request.
type ExecuteParams struct {
	Filepath       string            `json:"filepath"`
	ImportType     core.ImportType   `json:"import_type"`
	Mapping        core.FieldMapping `json:"column_mapping"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// Execute commits a staged import.
func (c *Client) Execute(ctx context.Context, params ExecuteParams) (*core.ImportOutcome, error) {
	var outcome core.ImportOutcome
	if err := c.postJSON(ctx, "/api/import/execute", "execute import", params, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// History fetches the most recent import log entries.
func (c *Client) History(ctx context.Context, limit int) ([]core.ImportLogEntry, error) {
	path := "/api/import/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp struct {
		Imports []core.ImportLogEntry `json:"imports"`
	}
	if err := c.do(req, "fetch history", &resp); err != nil {
		return nil, err
	}
	return resp.Imports, nil
}

// HistoryCSV fetches the import history as a CSV export.
func (c *Client) HistoryCSV(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/import/history/export", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapTransport("export history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport("export history", err)
	}
	return data, nil
}

// DownloadTemplate fetches the XLSX template for an import type. Returns the
// file contents and the server-suggested filename.
func (c *Client) DownloadTemplate(ctx context.Context, importType core.ImportType) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/import/template/"+url.PathEscape(string(importType)), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", wrapTransport("download template", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errorFromResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", wrapTransport("download template", err)
	}

	filename := "template.xlsx"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}
	return data, filename, nil
}

// SheetsConfig fetches the saved Google Sheets configuration, nil when unset.
func (c *Client) SheetsConfig(ctx context.Context) (*core.SheetsConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sync/google-sheets/config", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp struct {
		Configured bool               `json:"configured"`
		Config     *core.SheetsConfig `json:"config"`
	}
	if err := c.do(req, "fetch sheets config", &resp); err != nil {
		return nil, err
	}
	if !resp.Configured {
		return nil, nil
	}
	return resp.Config, nil
}

// SaveSheetsConfig persists the Google Sheets configuration.
func (c *Client) SaveSheetsConfig(ctx context.Context, cfg core.SheetsConfig) error {
	return c.postJSON(ctx, "/api/sync/google-sheets/config", "save sheets config", cfg, nil)
}

// SyncSheets triggers a Google Sheets pull and returns per-sheet outcomes.
// Force re-imports sheets whose content has not changed since the last pull.
func (c *Client) SyncSheets(ctx context.Context, force bool) (map[core.ImportType]*core.ImportOutcome, error) {
	var payload any
	if force {
		payload = map[string]bool{"force": true}
	}

	var resp struct {
		Outcomes map[core.ImportType]*core.ImportOutcome `json:"outcomes"`
	}
	if err := c.postJSON(ctx, "/api/sync/google-sheets", "sync sheets", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Outcomes, nil
}

// postJSON sends a JSON POST and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path, op string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

// do executes a request, classifies failures and decodes a JSON body.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorFromResponse turns an HTTP error status into the typed error the
// caller can branch on.
func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error  string `json:"error"`
		Action string `json:"action"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = resp.Status
	}

	if resp.StatusCode >= 500 {
		return &ServerError{Status: resp.StatusCode, Message: body.Error, Code: body.Code}
	}
	return &ValidationError{
		Status:  resp.StatusCode,
		Message: body.Error,
		Action:  body.Action,
		Code:    body.Code,
	}
}

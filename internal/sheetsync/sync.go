// Package sheetsync pulls ride and target data from published Google Sheets
// into the import pipeline. Sheets are fetched through the public CSV export
// endpoint, so no Google API credentials are needed; the spreadsheets must
// be shared as "anyone with the link".
package sheetsync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mobidash/importd/internal/core"
)

// ErrNotConfigured is returned by Sync before any spreadsheet IDs are saved.
var ErrNotConfigured = errors.New("google sheets sync is not configured")

const defaultExportURL = "https://docs.google.com/spreadsheets/d/%s/export?format=csv"

// Importer is the slice of the import service the sync worker drives.
type Importer interface {
	SaveUpload(filename string, r io.Reader) (*core.StagedFile, error)
	Preview(path string, importType core.ImportType) (*core.PreviewResult, error)
	Execute(ctx context.Context, params core.ExecuteParams) (*core.ImportOutcome, error)
}

// Service coordinates sheet pulls: it resolves the saved configuration,
// downloads each sheet as CSV and runs it through the same import pipeline
// uploaded files use.
type Service struct {
	store     core.SheetsConfigStore
	importer  Importer
	client    *http.Client
	exportURL string
}

// Option customizes a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client used for sheet downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithExportURL overrides the sheet export URL format. Used by tests to
// point at a local server.
func WithExportURL(format string) Option {
	return func(s *Service) { s.exportURL = format }
}

func New(store core.SheetsConfigStore, importer Importer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		importer:  importer,
		client:    &http.Client{Timeout: 2 * time.Minute},
		exportURL: defaultExportURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveConfig validates and persists the spreadsheet IDs.
func (s *Service) SaveConfig(ctx context.Context, cfg core.SheetsConfig) error {
	if cfg.SpreadsheetRides == "" && cfg.SpreadsheetTargets == "" {
		return fmt.Errorf("at least one spreadsheet id is required")
	}
	if err := s.store.SaveSheetsConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save sheets config: %w", err)
	}
	return nil
}

// Config returns the saved configuration, or nil when none exists.
func (s *Service) Config(ctx context.Context) (*core.SheetsConfig, error) {
	cfg, err := s.store.GetSheetsConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sheets config: %w", err)
	}
	return cfg, nil
}

// Result is the outcome of one sync run, keyed by import type.
type Result struct {
	Outcomes map[core.ImportType]*core.ImportOutcome `json:"outcomes"`
}

// Sync pulls every configured spreadsheet. A failing sheet does not stop the
// others; its error is recorded in the outcome. Each pull carries an
// idempotency key derived from the sheet content, so re-syncing an unchanged
// sheet replays the recorded outcome instead of re-importing. Force skips
// the key and imports unconditionally.
func (s *Service) Sync(ctx context.Context, force bool) (*Result, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotConfigured
	}

	sheets := []struct {
		id         string
		importType core.ImportType
	}{
		{cfg.SpreadsheetRides, core.ImportRides},
		{cfg.SpreadsheetTargets, core.ImportTargets},
	}

	result := &Result{Outcomes: make(map[core.ImportType]*core.ImportOutcome)}
	for _, sheet := range sheets {
		if sheet.id == "" {
			continue
		}
		outcome, err := s.syncSheet(ctx, sheet.id, sheet.importType, force)
		if err != nil {
			result.Outcomes[sheet.importType] = &core.ImportOutcome{
				Success: false,
				Error:   err.Error(),
			}
			continue
		}
		result.Outcomes[sheet.importType] = outcome
	}
	return result, nil
}

// syncSheet downloads one spreadsheet and feeds it through the regular
// import pipeline: stage, detect mapping, execute.
func (s *Service) syncSheet(ctx context.Context, spreadsheetID string, importType core.ImportType, force bool) (*core.ImportOutcome, error) {
	data, err := s.fetch(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	staged, err := s.importer.SaveUpload(fmt.Sprintf("sheets_%s.csv", importType), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("stage sheet: %w", err)
	}

	preview, err := s.importer.Preview(staged.Filepath, importType)
	if err != nil {
		return nil, fmt.Errorf("analyze sheet: %w", err)
	}

	params := core.ExecuteParams{
		Filepath:   staged.Filepath,
		ImportType: importType,
		Mapping:    preview.DetectedMapping,
		Source:     core.SourceSheets,
	}
	if !force {
		sum := sha256.Sum256(data)
		params.IdempotencyKey = fmt.Sprintf("sheets-%s-%s", importType, hex.EncodeToString(sum[:]))
	}

	outcome, err := s.importer.Execute(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("import sheet: %w", err)
	}
	return outcome, nil
}

func (s *Service) fetch(ctx context.Context, spreadsheetID string) ([]byte, error) {
	url := fmt.Sprintf(s.exportURL, spreadsheetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download sheet: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download sheet: %w", err)
	}
	return data, nil
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobidash/importd/internal/config"
	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/sheetsync"
)

// stubService implements ImportService with canned results.
type stubService struct {
	staged      *core.StagedFile
	saveErr     error
	saveCalled  bool
	maxFileSize int64
	preview     *core.PreviewResult
	previewErr  error
	outcome     *core.ImportOutcome
	executeErr  error
	history     []core.ImportLogEntry
	historyErr  error
	historyCSV  []byte
	removed     int
	lastExecute core.ExecuteParams
}

func (s *stubService) SaveUpload(filename string, r io.Reader) (*core.StagedFile, error) {
	s.saveCalled = true
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	io.Copy(io.Discard, r)
	return s.staged, nil
}

func (s *stubService) Preview(path string, importType core.ImportType) (*core.PreviewResult, error) {
	if s.previewErr != nil {
		return nil, s.previewErr
	}
	return s.preview, nil
}

func (s *stubService) Execute(_ context.Context, params core.ExecuteParams) (*core.ImportOutcome, error) {
	s.lastExecute = params
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	return s.outcome, nil
}

func (s *stubService) History(_ context.Context, limit int) ([]core.ImportLogEntry, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	if limit < len(s.history) {
		return s.history[:limit], nil
	}
	return s.history, nil
}

func (s *stubService) ExportHistoryCSV(context.Context, int) ([]byte, error) {
	return s.historyCSV, nil
}

func (s *stubService) CleanupOldFiles(days int) (int, error) {
	return s.removed, nil
}

func (s *stubService) MaxFileSize() int64 {
	if s.maxFileSize > 0 {
		return s.maxFileSize
	}
	return 1 << 20
}

// countingReader tracks how many request body bytes the server consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// stubSheets implements SheetsService.
type stubSheets struct {
	cfg       *core.SheetsConfig
	saveErr   error
	result    *sheetsync.Result
	syncErr   error
	lastForce bool
}

func (s *stubSheets) SaveConfig(_ context.Context, cfg core.SheetsConfig) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cfg = &cfg
	return nil
}

func (s *stubSheets) Config(context.Context) (*core.SheetsConfig, error) {
	return s.cfg, nil
}

func (s *stubSheets) Sync(_ context.Context, force bool) (*sheetsync.Result, error) {
	s.lastForce = force
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	return s.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout:  time.Minute,
			ShutdownTimeout: time.Second,
		},
		Uploads: config.UploadConfig{RetentionDays: 7},
		Rate:    config.RateLimitConfig{Enabled: false},
	}
}

func newTestServer(service *stubService, sheets *stubSheets) *Server {
	if sheets == nil {
		sheets = &stubSheets{}
	}
	return NewServer(service, sheets, testConfig())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, importType, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("import_type", importType))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	preview := &core.PreviewResult{
		TotalRows:       2,
		Columns:         []string{"data", "cliente"},
		DetectedMapping: core.FieldMapping{"data": "data"},
	}
	service := &stubService{
		staged:  &core.StagedFile{Filename: "rides.csv", Filepath: "/uploads/x_rides.csv", FileSize: 42},
		preview: preview,
	}
	srv := newTestServer(service, nil)

	t.Run("stages and previews", func(t *testing.T) {
		body, contentType := multipartUpload(t, "corridas", "rides.csv", "data,cliente\n1,2\n")
		req := httptest.NewRequest(http.MethodPost, "/api/import/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp uploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Equal(t, "rides.csv", resp.Filename)
		require.Equal(t, 2, resp.Preview.TotalRows)
	})

	t.Run("unknown import type", func(t *testing.T) {
		body, contentType := multipartUpload(t, "faturas", "rides.csv", "data\n1\n")
		req := httptest.NewRequest(http.MethodPost, "/api/import/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.False(t, resp.Success)
		require.NotEmpty(t, resp.Code)
	})

	t.Run("oversized upload is cut off at the cap", func(t *testing.T) {
		service := &stubService{maxFileSize: 1024}
		srv := newTestServer(service, nil)

		body, contentType := multipartUpload(t, "corridas", "big.csv", strings.Repeat("x", 4<<20))
		total := int64(body.Len())

		cr := &countingReader{r: body}
		req := httptest.NewRequest(http.MethodPost, "/api/import/upload", cr)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "FMT002", resp.Code)

		require.False(t, service.saveCalled, "oversized upload must not reach staging")
		require.Less(t, cr.n, total, "server must stop reading at the size cap, not drain the body")
	})

	t.Run("unsupported format surfaces as 400", func(t *testing.T) {
		failing := &stubService{saveErr: core.ErrUnsupportedFormat}
		srv := newTestServer(failing, nil)

		body, contentType := multipartUpload(t, "corridas", "rides.pdf", "junk")
		req := httptest.NewRequest(http.MethodPost, "/api/import/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlePreview(t *testing.T) {
	service := &stubService{
		preview: &core.PreviewResult{TotalRows: 7},
	}
	srv := newTestServer(service, nil)

	t.Run("ok", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/import/preview",
			previewRequest{Filepath: "/uploads/x.csv", ImportType: "corridas"})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp previewResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Equal(t, 7, resp.Preview.TotalRows)
	})

	t.Run("missing staged file is 404", func(t *testing.T) {
		failing := &stubService{previewErr: core.ErrFileNotFound}
		srv := newTestServer(failing, nil)

		rec := doJSON(t, srv, http.MethodPost, "/api/import/preview",
			previewRequest{Filepath: "/uploads/gone.csv", ImportType: "corridas"})

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/import/preview", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleValidateMapping(t *testing.T) {
	srv := newTestServer(&stubService{}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/import/validate-mapping", validateMappingRequest{
		ImportType: "metas",
		Mapping:    core.FieldMapping{"municipio": "cidade"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateMappingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.False(t, resp.Validation.Valid)
	require.Contains(t, resp.Validation.MissingRequiredFields, "mes")
}

func TestHandleExecute(t *testing.T) {
	t.Run("outcome passed through", func(t *testing.T) {
		service := &stubService{
			outcome: &core.ImportOutcome{Success: true, Imported: 10, ImportLogID: 3},
		}
		srv := newTestServer(service, nil)

		rec := doJSON(t, srv, http.MethodPost, "/api/import/execute", executeRequest{
			Filepath:       "/uploads/x.csv",
			ImportType:     "corridas",
			Mapping:        core.FieldMapping{"data": "data"},
			IdempotencyKey: "key-1",
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var outcome core.ImportOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		require.True(t, outcome.Success)
		require.Equal(t, 10, outcome.Imported)

		require.Equal(t, "key-1", service.lastExecute.IdempotencyKey)
		require.Equal(t, core.ImportRides, service.lastExecute.ImportType)
	})

	t.Run("incomplete mapping is 400", func(t *testing.T) {
		service := &stubService{executeErr: core.ErrIncompleteMapping}
		srv := newTestServer(service, nil)

		rec := doJSON(t, srv, http.MethodPost, "/api/import/execute", executeRequest{
			Filepath:   "/uploads/x.csv",
			ImportType: "corridas",
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure is 500", func(t *testing.T) {
		service := &stubService{executeErr: errors.New("pg down")}
		srv := newTestServer(service, nil)

		rec := doJSON(t, srv, http.MethodPost, "/api/import/execute", executeRequest{
			Filepath:   "/uploads/x.csv",
			ImportType: "corridas",
		})

		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleHistory(t *testing.T) {
	now := time.Now()
	service := &stubService{
		history: []core.ImportLogEntry{
			{ID: 2, Filename: "b.csv", Status: core.StatusCompleted, StartedAt: now},
			{ID: 1, Filename: "a.csv", Status: core.StatusFailed, StartedAt: now.Add(-time.Hour)},
		},
		historyCSV: []byte("id,filename\n2,b.csv\n"),
	}
	srv := newTestServer(service, nil)

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/history", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Len(t, resp.Imports, 2)
		require.Equal(t, "b.csv", resp.Imports[0].Filename)
	})

	t.Run("limit applied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/history?limit=1", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Imports, 1)
	})

	t.Run("bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/history?limit=ten", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("csv export", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/history/export", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
		require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		require.Contains(t, rec.Body.String(), "b.csv")
	})
}

func TestHandleDownloadTemplate(t *testing.T) {
	srv := newTestServer(&stubService{}, nil)

	t.Run("xlsx attachment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/template/corridas", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Disposition"), "template_corridas.xlsx")
		require.NotZero(t, rec.Body.Len())
	})

	t.Run("unknown type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/import/template/faturas", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSupportedFormats(t *testing.T) {
	srv := newTestServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/import/supported-formats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp supportedFormatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Contains(t, resp.Formats, ".csv")
	require.Contains(t, resp.ImportTypes, "corridas")
	require.Equal(t, int64(1<<20), resp.MaxFileSize)
}

func TestHandleCleanup(t *testing.T) {
	service := &stubService{removed: 4}
	srv := newTestServer(service, nil)

	t.Run("defaults to configured retention", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/import/cleanup", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp cleanupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Equal(t, 4, resp.Removed)
	})

	t.Run("rejects non-positive days", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/import/cleanup", cleanupRequest{Days: -1})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSheets(t *testing.T) {
	t.Run("config roundtrip", func(t *testing.T) {
		sheets := &stubSheets{}
		srv := newTestServer(&stubService{}, sheets)

		rec := doJSON(t, srv, http.MethodPost, "/api/sync/google-sheets/config",
			core.SheetsConfig{SpreadsheetRides: "sheet-a"})
		require.Equal(t, http.StatusOK, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/sync/google-sheets/config", nil)
		getRec := httptest.NewRecorder()
		srv.Router().ServeHTTP(getRec, req)

		var resp sheetsConfigResponse
		require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
		require.True(t, resp.Configured)
		require.Equal(t, "sheet-a", resp.Config.SpreadsheetRides)
	})

	t.Run("unconfigured get", func(t *testing.T) {
		srv := newTestServer(&stubService{}, &stubSheets{})

		req := httptest.NewRequest(http.MethodGet, "/api/sync/google-sheets/config", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		var resp sheetsConfigResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.False(t, resp.Configured)
	})

	t.Run("sync before config is 409", func(t *testing.T) {
		srv := newTestServer(&stubService{}, &stubSheets{syncErr: sheetsync.ErrNotConfigured})

		req := httptest.NewRequest(http.MethodPost, "/api/sync/google-sheets", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("sync reports per-sheet outcomes", func(t *testing.T) {
		sheets := &stubSheets{
			result: &sheetsync.Result{Outcomes: map[core.ImportType]*core.ImportOutcome{
				core.ImportRides:   {Success: true, Imported: 12},
				core.ImportTargets: {Success: false, Error: "download sheet: unexpected status 404"},
			}},
		}
		srv := newTestServer(&stubService{}, sheets)

		req := httptest.NewRequest(http.MethodPost, "/api/sync/google-sheets", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp sheetsSyncResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.False(t, resp.Success)
		require.True(t, resp.Outcomes[core.ImportRides].Success)
	})

	t.Run("sync body can carry config and force", func(t *testing.T) {
		sheets := &stubSheets{
			result: &sheetsync.Result{Outcomes: map[core.ImportType]*core.ImportOutcome{}},
		}
		srv := newTestServer(&stubService{}, sheets)

		rec := doJSON(t, srv, http.MethodPost, "/api/sync/google-sheets", map[string]any{
			"config": map[string]string{"spreadsheet_id_corridas": "sheet-b"},
			"force":  true,
		})

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, sheets.lastForce)
		require.NotNil(t, sheets.cfg)
		require.Equal(t, "sheet-b", sheets.cfg.SpreadsheetRides)
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	srv := NewServer(&stubService{}, &stubSheets{}, cfg)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

// Package web provides the HTTP server and handlers for the import API.
package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mobidash/importd/internal/config"
	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/sheetsync"
)

// ImportService is the import pipeline surface the handlers call. The
// concrete implementation is core.Service; tests substitute their own.
type ImportService interface {
	SaveUpload(filename string, r io.Reader) (*core.StagedFile, error)
	Preview(path string, importType core.ImportType) (*core.PreviewResult, error)
	Execute(ctx context.Context, params core.ExecuteParams) (*core.ImportOutcome, error)
	History(ctx context.Context, limit int) ([]core.ImportLogEntry, error)
	ExportHistoryCSV(ctx context.Context, limit int) ([]byte, error)
	CleanupOldFiles(days int) (int, error)
	MaxFileSize() int64
}

// SheetsService drives the Google Sheets sync endpoints.
type SheetsService interface {
	SaveConfig(ctx context.Context, cfg core.SheetsConfig) error
	Config(ctx context.Context) (*core.SheetsConfig, error)
	Sync(ctx context.Context, force bool) (*sheetsync.Result, error)
}

// Server is the HTTP server for the import API.
type Server struct {
	service ImportService
	sheets  SheetsService
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires the handlers, middleware, and routes.
func NewServer(service ImportService, sheets SheetsService, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		sheets:  sheets,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs the shared middleware chain.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes mounts the API surface.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/import", func(r chi.Router) {
			// Upload endpoints get a stricter per-IP budget.
			uploadGroup := r
			if s.cfg.Rate.Enabled {
				uploadLimiter := newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute)
				uploadGroup = r.With(uploadLimiter.middleware)
			}
			uploadGroup.Post("/upload", s.handleUpload)

			r.Post("/preview", s.handlePreview)
			r.Post("/validate-mapping", s.handleValidateMapping)
			r.Post("/execute", s.handleExecute)
			r.Get("/history", s.handleHistory)
			r.Get("/history/export", s.handleHistoryExport)
			r.Get("/template/{type}", s.handleDownloadTemplate)
			r.Get("/supported-formats", s.handleSupportedFormats)
			r.Post("/cleanup", s.handleCleanup)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/google-sheets", s.handleSheetsSync)
			r.Get("/google-sheets/config", s.handleSheetsConfigGet)
			r.Post("/google-sheets/config", s.handleSheetsConfigSave)
		})
	})
}

// Start blocks serving HTTP on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the chi mux so tests can drive it directly.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// securityHeaders stamps the standard hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

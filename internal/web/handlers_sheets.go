package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/logging"
	"github.com/mobidash/importd/internal/sheetsync"
)

type sheetsConfigResponse struct {
	Success    bool               `json:"success"`
	Configured bool               `json:"configured"`
	Config     *core.SheetsConfig `json:"config,omitempty"`
}

func (s *Server) handleSheetsConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.sheets.Config(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sheetsConfigResponse{
		Success:    true,
		Configured: cfg != nil,
		Config:     cfg,
	})
}

func (s *Server) handleSheetsConfigSave(w http.ResponseWriter, r *http.Request) {
	var cfg core.SheetsConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	if err := s.sheets.SaveConfig(r.Context(), cfg); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.FromContext(r.Context()).Info("sheets config saved")
	writeJSON(w, http.StatusOK, sheetsConfigResponse{Success: true, Configured: true, Config: &cfg})
}

type sheetsSyncResponse struct {
	Success  bool                                    `json:"success"`
	Outcomes map[core.ImportType]*core.ImportOutcome `json:"outcomes"`
}

type sheetsSyncRequest struct {
	Config *core.SheetsConfig `json:"config,omitempty"`
	Force  bool               `json:"force,omitempty"`
}

// handleSheetsSync triggers a pull of all configured spreadsheets. The run
// is synchronous; pulls are bounded by the request timeout. The optional
// body can carry a config to persist first and a force flag that re-imports
// sheets whose content has not changed.
func (s *Server) handleSheetsSync(w http.ResponseWriter, r *http.Request) {
	var req sheetsSyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
			return
		}
	}

	if req.Config != nil {
		if err := s.sheets.SaveConfig(r.Context(), *req.Config); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	result, err := s.sheets.Sync(r.Context(), req.Force)
	if errors.Is(err, sheetsync.ErrNotConfigured) {
		s.respondError(w, r, err, http.StatusConflict)
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	success := true
	for _, outcome := range result.Outcomes {
		if !outcome.Success {
			success = false
		}
	}

	logging.FromContext(r.Context()).Info("sheets sync finished",
		"sheets", len(result.Outcomes), "success", success)

	writeJSON(w, http.StatusOK, sheetsSyncResponse{Success: success, Outcomes: result.Outcomes})
}

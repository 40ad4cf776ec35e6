package web

import (
	"fmt"
	"net/http"

	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/logging"
)

type executeRequest struct {
	Filepath       string            `json:"filepath"`
	ImportType     string            `json:"import_type"`
	Mapping        core.FieldMapping `json:"column_mapping"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// handleExecute runs a staged import to completion. The response carries the
// outcome even for failed imports; an HTTP error means the import could not
// be attempted at all.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	importType, err := core.ParseImportType(req.ImportType)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	log := logging.WithFields(r.Context(), "import_type", req.ImportType)

	outcome, err := s.service.Execute(r.Context(), core.ExecuteParams{
		Filepath:       req.Filepath,
		ImportType:     importType,
		Mapping:        req.Mapping,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	if outcome.Duplicate {
		log.Info("duplicate execute request served from history",
			"import_log_id", outcome.ImportLogID)
	} else {
		log.Info("import finished",
			"import_log_id", outcome.ImportLogID,
			"imported", outcome.Imported,
			"errors", outcome.Errors)
	}

	writeJSON(w, http.StatusOK, outcome)
}

type cleanupRequest struct {
	Days int `json:"days"`
}

type cleanupResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// handleCleanup removes staged files past the retention window. Days
// defaults to the configured retention when the body omits it.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	req := cleanupRequest{Days: s.cfg.Uploads.RetentionDays}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
			return
		}
	}
	if req.Days <= 0 {
		s.respondError(w, r, fmt.Errorf("days must be positive"), http.StatusBadRequest)
		return
	}

	removed, err := s.service.CleanupOldFiles(req.Days)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	logging.FromContext(r.Context()).Info("staged files cleaned up",
		"removed", removed, "days", req.Days)

	writeJSON(w, http.StatusOK, cleanupResponse{Success: true, Removed: removed})
}

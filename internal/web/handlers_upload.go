package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/logging"
)

// uploadResponse is returned by POST /api/import/upload. Staging and first
// preview happen in one round trip so clients see the detected mapping
// immediately after picking a file.
type uploadResponse struct {
	Success  bool                `json:"success"`
	Filename string              `json:"filename"`
	Filepath string              `json:"filepath"`
	FileSize int64               `json:"file_size"`
	Preview  *core.PreviewResult `json:"preview"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// The cap must be installed before any form access; reading a form value
	// first would parse, and fully drain, an oversized multipart body.
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+1024*1024)

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("parse multipart form: %w", err), http.StatusBadRequest)
		return
	}

	importType, err := core.ParseImportType(r.FormValue("import_type"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read multipart file: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	staged, err := s.service.SaveUpload(header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	preview, err := s.service.Preview(staged.Filepath, importType)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	logging.WithFields(r.Context(),
		"filename", staged.Filename,
		"import_type", string(importType),
	).Info("file staged", "rows", preview.TotalRows)

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Filename: staged.Filename,
		Filepath: staged.Filepath,
		FileSize: staged.FileSize,
		Preview:  preview,
	})
}

type previewRequest struct {
	Filepath   string `json:"filepath"`
	ImportType string `json:"import_type"`
}

type previewResponse struct {
	Success bool                `json:"success"`
	Preview *core.PreviewResult `json:"preview"`
}

// handlePreview re-runs the analysis on an already staged file, typically
// after the user switches the import type.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	importType, err := core.ParseImportType(req.ImportType)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	preview, err := s.service.Preview(req.Filepath, importType)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{Success: true, Preview: preview})
}

type validateMappingRequest struct {
	ImportType string            `json:"import_type"`
	Mapping    core.FieldMapping `json:"column_mapping"`
}

type validateMappingResponse struct {
	Success    bool                   `json:"success"`
	Validation core.MappingValidation `json:"validation"`
}

func (s *Server) handleValidateMapping(w http.ResponseWriter, r *http.Request) {
	var req validateMappingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	importType, err := core.ParseImportType(req.ImportType)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	schema, _ := core.Schema(importType)
	writeJSON(w, http.StatusOK, validateMappingResponse{
		Success:    true,
		Validation: core.ValidateMapping(schema, req.Mapping),
	})
}

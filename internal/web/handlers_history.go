package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mobidash/importd/internal/core"
)

type historyResponse struct {
	Success bool                  `json:"success"`
	Imports []core.ImportLogEntry `json:"imports"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := core.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.ImportLogEntry{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Success: true, Imports: entries})
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportHistoryCSV(r.Context(), core.DefaultHistoryLimit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("import_history_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	importType, err := core.ParseImportType(chi.URLParam(r, "type"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, filename, err := core.BuildTemplate(importType)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

type supportedFormatsResponse struct {
	Success     bool     `json:"success"`
	Formats     []string `json:"formats"`
	MaxFileSize int64    `json:"max_file_size"`
	ImportTypes []string `json:"import_types"`
}

func (s *Server) handleSupportedFormats(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, len(core.ImportTypes()))
	for _, t := range core.ImportTypes() {
		types = append(types, string(t))
	}

	writeJSON(w, http.StatusOK, supportedFormatsResponse{
		Success:     true,
		Formats:     core.SupportedExtensions,
		MaxFileSize: s.service.MaxFileSize(),
		ImportTypes: types,
	})
}

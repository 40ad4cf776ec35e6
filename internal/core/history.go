package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jszwec/csvutil"
)

// DefaultHistoryLimit bounds history listings when the caller passes no limit.
const DefaultHistoryLimit = 50

// History returns the most recent import log entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ImportLogEntry, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	entries, err := s.logs.ListImportLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	return entries, nil
}

// historyCSVRow is the flat CSV shape of one history entry.
type historyCSVRow struct {
	ID          int64  `csv:"id"`
	Filename    string `csv:"filename"`
	ImportType  string `csv:"import_type"`
	Status      string `csv:"status"`
	TotalRows   int    `csv:"total_rows"`
	SuccessRows int    `csv:"success_rows"`
	ErrorRows   int    `csv:"error_rows"`
	StartedAt   string `csv:"started_at"`
	CompletedAt string `csv:"completed_at"`
}

// ExportHistoryCSV renders the import history as CSV for download.
func (s *Service) ExportHistoryCSV(ctx context.Context, limit int) ([]byte, error) {
	entries, err := s.History(ctx, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]historyCSVRow, 0, len(entries))
	for _, e := range entries {
		row := historyCSVRow{
			ID:          e.ID,
			Filename:    e.Filename,
			ImportType:  e.ImportType,
			Status:      e.Status,
			TotalRows:   e.TotalRows,
			SuccessRows: e.SuccessRows,
			ErrorRows:   e.ErrorRows,
			StartedAt:   e.StartedAt.Format(time.RFC3339),
		}
		if e.CompletedAt != nil {
			row.CompletedAt = e.CompletedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal history csv: %w", err)
	}
	return data, nil
}

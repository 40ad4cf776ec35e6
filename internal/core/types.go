// Package core provides the business logic for spreadsheet import operations:
// schema-driven column mapping, preview, and execution for the mobility
// dashboard. This package has no HTTP dependencies and is shared by the
// server, the sheet sync worker, and tests.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ImportType is the logical category of spreadsheet being imported.
// The values are wire-level identifiers and must match what clients send.
type ImportType string

const (
	ImportRides   ImportType = "corridas"
	ImportDrivers ImportType = "motoristas"
	ImportTargets ImportType = "metas"
)

// ParseImportType validates a wire-level import type string.
func ParseImportType(s string) (ImportType, error) {
	switch ImportType(s) {
	case ImportRides, ImportDrivers, ImportTargets:
		return ImportType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownImportType, s)
}

// FieldMapping maps logical field names to source column headers.
// A field absent from the map is unmapped.
type FieldMapping map[string]string

// Clone returns an independent copy of the mapping.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PreviewResult is the read-only analysis of a staged file. It is built once
// per preview call and never mutated.
type PreviewResult struct {
	TotalRows       int                 `json:"total_rows"`
	Columns         []string            `json:"columns"`
	SampleData      []map[string]string `json:"sample_data"`
	DetectedMapping FieldMapping        `json:"detected_mapping"`
	RequiredFields  []string            `json:"required_fields"`
	OptionalFields  []string            `json:"optional_fields"`
}

// Import log status values, persisted as-is in import_logs.status.
const (
	StatusProcessing          = "processing"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// ImportOutcome is the terminal result of one execute call.
type ImportOutcome struct {
	Success      bool     `json:"success"`
	Imported     int      `json:"imported"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"error_details,omitempty"`
	ImportLogID  int64    `json:"import_log_id"`
	Duplicate    bool     `json:"duplicate,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// ImportLogEntry is one row of the import history. Read-only to callers;
// its lifecycle is owned by the ImportLogStore.
type ImportLogEntry struct {
	ID           int64      `json:"id" db:"id"`
	Filename     string     `json:"filename" db:"filename"`
	FileSize     int64      `json:"file_size" db:"file_size"`
	TotalRows    int        `json:"total_rows" db:"total_rows"`
	SuccessRows  int        `json:"success_rows" db:"success_rows"`
	ErrorRows    int        `json:"error_rows" db:"error_rows"`
	ImportType   string     `json:"import_type" db:"import_type"`
	Status       string     `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RideStatus is the normalized outcome of a single ride.
type RideStatus string

const (
	RideCompleted RideStatus = "concluida"
	RideCancelled RideStatus = "cancelada"
	RideLost      RideStatus = "perdida"
)

// Record sources, persisted so imported rows can be told apart from synced ones.
const (
	SourceImport = "import"
	SourceSheets = "sheets"
)

// Ride is one imported ride row. Optional columns use pgtype values so the
// store can write NULLs without pointer juggling.
type Ride struct {
	Date         time.Time
	UserName     string
	UserPhone    pgtype.Text
	DriverName   string
	City         string
	Status       RideStatus
	Fare         pgtype.Numeric
	DistanceKM   pgtype.Float8
	DurationMin  pgtype.Int4
	Rating       pgtype.Int4
	CancelReason pgtype.Text
	Source       string
}

// Driver is one imported driver row.
type Driver struct {
	Name         string
	City         string
	Phone        pgtype.Text
	Status       pgtype.Text
	RegisteredAt pgtype.Date
	Source       string
}

// Target is one imported monthly target row. Month is normalized to "2006-01".
type Target struct {
	City          string
	Month         string
	TargetRides   int
	TargetRevenue pgtype.Numeric
	TargetDrivers pgtype.Int4
	Source        string
}

// CreateImportLogParams starts a history entry before row processing begins.
type CreateImportLogParams struct {
	Filename       string
	FileSize       int64
	ImportType     ImportType
	IdempotencyKey string
}

// FinishImportLogParams closes a history entry with its terminal counts.
type FinishImportLogParams struct {
	ID           int64
	TotalRows    int
	SuccessRows  int
	ErrorRows    int
	Status       string
	ErrorMessage string
}

// ImportLogStore persists import history entries.
type ImportLogStore interface {
	CreateImportLog(ctx context.Context, params CreateImportLogParams) (int64, error)
	FinishImportLog(ctx context.Context, params FinishImportLogParams) error
	ListImportLogs(ctx context.Context, limit int) ([]ImportLogEntry, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*ImportLogEntry, error)
}

// SheetsConfig holds the Google Sheets source configuration for the sync
// worker. There is at most one active config.
type SheetsConfig struct {
	SpreadsheetRides   string `json:"spreadsheet_id_corridas" db:"spreadsheet_id_corridas"`
	SpreadsheetTargets string `json:"spreadsheet_id_metas" db:"spreadsheet_id_metas"`
}

// SheetsConfigStore persists the sheet sync configuration.
type SheetsConfigStore interface {
	SaveSheetsConfig(ctx context.Context, cfg SheetsConfig) error
	GetSheetsConfig(ctx context.Context) (*SheetsConfig, error)
}

// RecordStore persists the parsed rows of an import batch.
type RecordStore interface {
	InsertRides(ctx context.Context, rides []Ride) error
	InsertDrivers(ctx context.Context, drivers []Driver) error
	InsertTargets(ctx context.Context, targets []Target) error
}

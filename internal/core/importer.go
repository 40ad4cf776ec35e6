package core

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// maxErrorDetails caps how many per-row errors an outcome reports. All rows
// are still processed and counted; only the detail list is truncated.
const maxErrorDetails = 10

// ExecuteParams is the input of one import execution. Source defaults to
// SourceImport; the sheet sync worker sets SourceSheets.
type ExecuteParams struct {
	Filepath       string
	ImportType     ImportType
	Mapping        FieldMapping
	IdempotencyKey string
	Source         string
}

// Execute runs a full import: it validates the mapping, opens a history
// entry, parses every row, bulk-inserts the valid ones and closes the entry
// with the terminal counts. Row-level failures never abort the batch; only
// unreadable files and storage failures do.
//
// When an idempotency key is supplied and a previous execution already used
// it, the recorded outcome is returned without touching any data.
func (s *Service) Execute(ctx context.Context, params ExecuteParams) (*ImportOutcome, error) {
	schema, ok := Schema(params.ImportType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImportType, params.ImportType)
	}

	if v := ValidateMapping(schema, params.Mapping); !v.Valid {
		return nil, fmt.Errorf("%w: missing %s",
			ErrIncompleteMapping, strings.Join(v.MissingRequiredFields, ", "))
	}

	if params.IdempotencyKey != "" {
		entry, err := s.logs.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if entry != nil {
			// A processing entry has no terminal outcome to replay yet.
			if entry.Status == StatusProcessing {
				return nil, fmt.Errorf("%w: key %q", ErrImportInProgress, params.IdempotencyKey)
			}
			return outcomeFromEntry(entry), nil
		}
	}

	abs, err := s.resolveStagedPath(params.Filepath)
	if err != nil {
		return nil, err
	}

	var fileSize int64
	if info, statErr := os.Stat(abs); statErr == nil {
		fileSize = info.Size()
	}

	logID, err := s.logs.CreateImportLog(ctx, CreateImportLogParams{
		Filename:       originalFilename(abs),
		FileSize:       fileSize,
		ImportType:     params.ImportType,
		IdempotencyKey: params.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create import log: %w", err)
	}

	table, err := ReadTable(abs)
	if err != nil {
		return s.finishFailed(ctx, logID, 0, fmt.Errorf("read file: %w", err))
	}

	source := params.Source
	if source == "" {
		source = SourceImport
	}
	batch, rowErrors := buildBatch(table, schema, params.Mapping, source)

	imported := batch.len()
	outcome := &ImportOutcome{
		Success:     imported > 0,
		Imported:    imported,
		Errors:      len(rowErrors),
		ImportLogID: logID,
	}
	outcome.ErrorDetails = truncateDetails(rowErrors)

	status := StatusCompleted
	switch {
	case imported == 0:
		status = StatusFailed
		outcome.Error = "no valid rows found"
	case len(rowErrors) > 0:
		status = StatusCompletedWithErrors
	}

	// Insert and finish commit together so the history row never claims
	// counts the record tables do not have.
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := batch.insert(ctx, s.records); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return s.logs.FinishImportLog(ctx, FinishImportLogParams{
			ID:           logID,
			TotalRows:    len(table.Rows),
			SuccessRows:  imported,
			ErrorRows:    len(rowErrors),
			Status:       status,
			ErrorMessage: outcome.Error,
		})
	})
	if err != nil {
		return s.finishFailed(ctx, logID, len(table.Rows), err)
	}

	s.RemoveStagedFile(abs)
	return outcome, nil
}

// finishFailed closes the history entry after a fatal error and reports the
// failure as an outcome rather than a transport error.
func (s *Service) finishFailed(ctx context.Context, logID int64, totalRows int, cause error) (*ImportOutcome, error) {
	if err := s.logs.FinishImportLog(ctx, FinishImportLogParams{
		ID:           logID,
		TotalRows:    totalRows,
		Status:       StatusFailed,
		ErrorMessage: cause.Error(),
	}); err != nil {
		return nil, fmt.Errorf("finish import log: %w", err)
	}
	return &ImportOutcome{
		Success:     false,
		ImportLogID: logID,
		Error:       cause.Error(),
	}, nil
}

func outcomeFromEntry(entry *ImportLogEntry) *ImportOutcome {
	return &ImportOutcome{
		Success:     entry.Status == StatusCompleted || entry.Status == StatusCompletedWithErrors,
		Imported:    entry.SuccessRows,
		Errors:      entry.ErrorRows,
		ImportLogID: entry.ID,
		Duplicate:   true,
		Error:       entry.ErrorMessage,
	}
}

func truncateDetails(errs []string) []string {
	if len(errs) <= maxErrorDetails {
		return errs
	}
	out := make([]string, maxErrorDetails, maxErrorDetails+1)
	copy(out, errs[:maxErrorDetails])
	return append(out, fmt.Sprintf("... and %d more errors", len(errs)-maxErrorDetails))
}

// recordBatch accumulates parsed rows for exactly one import type.
type recordBatch struct {
	rides   []Ride
	drivers []Driver
	targets []Target
}

func (b *recordBatch) len() int {
	return len(b.rides) + len(b.drivers) + len(b.targets)
}

func (b *recordBatch) insert(ctx context.Context, store RecordStore) error {
	switch {
	case len(b.rides) > 0:
		return store.InsertRides(ctx, b.rides)
	case len(b.drivers) > 0:
		return store.InsertDrivers(ctx, b.drivers)
	case len(b.targets) > 0:
		return store.InsertTargets(ctx, b.targets)
	}
	return nil
}

// buildBatch converts every table row into a typed record. Failed rows are
// reported as "row N: reason" using spreadsheet row numbers, where the header
// is row 1.
func buildBatch(table *Table, schema ImportSchema, mapping FieldMapping, source string) (*recordBatch, []string) {
	// Resolve mapped columns to indices once instead of per row.
	indices := make(map[string]int, len(mapping))
	for field, col := range mapping {
		indices[field] = table.ColumnIndex(col)
	}
	cell := func(row []string, field string) string {
		idx, ok := indices[field]
		if !ok {
			return ""
		}
		return table.Cell(row, idx)
	}

	batch := &recordBatch{}
	var rowErrors []string
	for i, row := range table.Rows {
		var err error
		switch schema.Type {
		case ImportRides:
			var r Ride
			if r, err = buildRide(cell, row, source); err == nil {
				batch.rides = append(batch.rides, r)
			}
		case ImportDrivers:
			var d Driver
			if d, err = buildDriver(cell, row, source); err == nil {
				batch.drivers = append(batch.drivers, d)
			}
		case ImportTargets:
			var t Target
			if t, err = buildTarget(cell, row, source); err == nil {
				batch.targets = append(batch.targets, t)
			}
		}
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: %v", i+2, err))
		}
	}
	return batch, rowErrors
}

type cellFunc func(row []string, field string) string

func buildRide(cell cellFunc, row []string, source string) (Ride, error) {
	date, err := ParseDate(cell(row, "data"))
	if err != nil {
		return Ride{}, fmt.Errorf("invalid date %q", cell(row, "data"))
	}

	userName := cell(row, "usuario_nome")
	if userName == "" {
		return Ride{}, fmt.Errorf("missing required field %q", "usuario_nome")
	}
	driverName := cell(row, "motorista_nome")
	if driverName == "" {
		return Ride{}, fmt.Errorf("missing required field %q", "motorista_nome")
	}
	city := cell(row, "municipio")
	if city == "" {
		return Ride{}, fmt.Errorf("missing required field %q", "municipio")
	}

	return Ride{
		Date:         date,
		UserName:     userName,
		UserPhone:    ParseText(cell(row, "usuario_telefone")),
		DriverName:   driverName,
		City:         city,
		Status:       ParseRideStatus(cell(row, "status")),
		Fare:         ParseMoney(cell(row, "valor")),
		DistanceKM:   ParseFloat(cell(row, "distancia")),
		DurationMin:  ParseInt(cell(row, "tempo_corrida")),
		Rating:       ParseInt(cell(row, "avaliacao")),
		CancelReason: ParseText(cell(row, "motivo_cancelamento")),
		Source:       source,
	}, nil
}

func buildDriver(cell cellFunc, row []string, source string) (Driver, error) {
	name := cell(row, "nome")
	if name == "" {
		return Driver{}, fmt.Errorf("missing required field %q", "nome")
	}
	city := cell(row, "municipio")
	if city == "" {
		return Driver{}, fmt.Errorf("missing required field %q", "municipio")
	}

	d := Driver{
		Name:   name,
		City:   city,
		Phone:  ParseText(cell(row, "telefone")),
		Status: ParseText(cell(row, "status")),
		Source: source,
	}
	if raw := cell(row, "data_cadastro"); raw != "" {
		registered, err := ParseDate(raw)
		if err != nil {
			return Driver{}, fmt.Errorf("invalid registration date %q", raw)
		}
		d.RegisteredAt = pgDate(registered)
	}
	return d, nil
}

func buildTarget(cell cellFunc, row []string, source string) (Target, error) {
	city := cell(row, "municipio")
	if city == "" {
		return Target{}, fmt.Errorf("missing required field %q", "municipio")
	}

	month, err := ParseMonth(cell(row, "mes"))
	if err != nil {
		return Target{}, fmt.Errorf("invalid month %q", cell(row, "mes"))
	}

	rides := ParseInt(cell(row, "meta_corridas"))
	if !rides.Valid {
		return Target{}, fmt.Errorf("invalid target rides %q", cell(row, "meta_corridas"))
	}

	return Target{
		City:          city,
		Month:         month,
		TargetRides:   int(rides.Int32),
		TargetRevenue: ParseMoney(cell(row, "meta_receita")),
		TargetDrivers: ParseInt(cell(row, "meta_motoristas")),
		Source:        source,
	}, nil
}

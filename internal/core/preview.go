package core

import "fmt"

// Preview reads a staged file and returns its structure with a sample of
// rows and the column mapping detected against the schema. It never writes
// any data.
func (s *Service) Preview(path string, importType ImportType) (*PreviewResult, error) {
	schema, ok := Schema(importType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImportType, importType)
	}

	abs, err := s.resolveStagedPath(path)
	if err != nil {
		return nil, err
	}

	table, err := ReadTable(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", originalFilename(path), err)
	}

	limit := s.sampleRows
	if limit > len(table.Rows) {
		limit = len(table.Rows)
	}
	sample := make([]map[string]string, 0, limit)
	for _, r := range table.Rows[:limit] {
		row := make(map[string]string, len(table.Columns))
		for j, col := range table.Columns {
			row[col] = table.Cell(r, j)
		}
		sample = append(sample, row)
	}

	return &PreviewResult{
		TotalRows:       len(table.Rows),
		Columns:         table.Columns,
		SampleData:      sample,
		DetectedMapping: DetectMapping(table.Columns, schema),
		RequiredFields:  schema.RequiredFields(),
		OptionalFields:  schema.OptionalFields(),
	}, nil
}

package core

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// templateRows holds one example row per import type, written under the
// header so users see the expected cell formats.
var templateRows = map[ImportType][]string{
	ImportRides: {
		"2025-01-15 08:30:00", "Maria Silva", "Joao Santos", "Santarem",
		"concluida", "(93) 99999-0000", "R$ 25,50", "8.2", "25", "5", "",
	},
	ImportDrivers: {
		"Joao Santos", "Santarem", "(93) 98888-0000", "ativo", "2024-11-01",
	},
	ImportTargets: {
		"Santarem", "2025-01", "1200", "R$ 35.000,00", "45",
	},
}

// BuildTemplate generates a downloadable XLSX template for an import type:
// one sheet with the schema's field names as headers and a single example
// row. Returns the file contents and a suggested filename.
func BuildTemplate(importType ImportType) ([]byte, string, error) {
	schema, ok := Schema(importType)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownImportType, importType)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, field := range schema.Fields {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, field.Name); err != nil {
			return nil, "", fmt.Errorf("write header: %w", err)
		}
	}

	for i, value := range templateRows[importType] {
		if value == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, "", fmt.Errorf("example cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return nil, "", fmt.Errorf("write example row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("template_%s.xlsx", importType), nil
}

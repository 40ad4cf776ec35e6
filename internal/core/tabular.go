package core

// tabular.go reads staged spreadsheet files into a uniform in-memory table.
// CSV handling copes with the messy reality of exported files: UTF-8 BOMs,
// broken encodings, ragged rows, and lazy quoting.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// SupportedExtensions lists the accepted spreadsheet file extensions.
var SupportedExtensions = []string{".xlsx", ".xls", ".csv"}

// SupportedExtension reports whether a filename has an accepted extension.
func SupportedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Table is a parsed spreadsheet: the header row plus all data rows.
// Rows may be ragged; cell access goes through Cell.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the trimmed value of a row cell by column index.
// Out-of-range indices read as empty, matching how spreadsheets omit
// trailing blank cells.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ColumnIndex returns the position of a header, matched case-insensitively.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// ReadTable parses a staged file into a Table based on its extension.
func ReadTable(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return readCSV(data)
	case ".xlsx", ".xls":
		return readWorkbook(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// readCSV parses CSV bytes. Invalid UTF-8 (typically latin-1 exports) is
// replaced rather than rejected so a stray accent does not fail the file.
func readCSV(data []byte) (*Table, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return tableFromRecords(records)
}

// oleMagic is the compound-document signature of legacy BIFF workbooks.
var oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// readWorkbook dispatches Excel files on their magic number rather than the
// extension. Files saved by old tooling are often named .xls but contain
// OOXML, and vice versa.
func readWorkbook(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	head := make([]byte, len(oleMagic))
	_, readErr := io.ReadFull(f, head)
	f.Close()

	if readErr == nil && bytes.Equal(head, oleMagic) {
		return readXLS(path)
	}
	return readXLSX(path)
}

// readXLS parses a legacy BIFF workbook, which excelize cannot open.
func readXLS(path string) (*Table, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook: %w", err)
	}

	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, ErrEmptyFile
	}

	records := make([][]string, 0, sheet.GetNumberRows())
	for i := 0; i < sheet.GetNumberRows(); i++ {
		row, err := sheet.GetRow(i)
		if err != nil {
			continue
		}
		cells := row.GetCols()
		rec := make([]string, len(cells))
		for j, cell := range cells {
			rec[j] = cell.GetString()
		}
		records = append(records, rec)
	}
	return tableFromRecords(records)
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return tableFromRecords(records)
}

func tableFromRecords(records [][]string) (*Table, error) {
	// Skip leading fully-empty rows before the header.
	for len(records) > 0 && isEmptyRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for _, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyFile)
	}

	return &Table{Columns: header, Rows: rows}, nil
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

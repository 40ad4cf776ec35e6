package core

// convert.go parses raw spreadsheet cells into typed values. The formats
// accepted here mirror what operators actually paste into these sheets:
// Brazilian dates and currency (R$ 1.234,56), comma decimal separators,
// and loose status spellings.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
}

// ParseDate parses a cell into a timestamp. Day-first layouts are tried
// before month-first, matching the source data's Brazilian convention.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid date: empty value")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", s)
}

// ParseMonth normalizes a cell into a "2006-01" month key. Accepts a bare
// month value or any full date, which is truncated to its month.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("invalid month: empty value")
	}
	for _, layout := range []string{"2006-01", "01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01"), nil
		}
	}
	if t, err := ParseDate(s); err == nil {
		return t.Format("2006-01"), nil
	}
	return "", fmt.Errorf("invalid month: %q", s)
}

// ParseMoney parses a currency cell into pgtype.Numeric. Strips the R$
// prefix and spaces and accepts a comma decimal separator. Empty cells
// come back invalid (NULL), not zero.
func ParseMoney(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	// "1.234,56" carries a thousands dot only when a comma decimal follows.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return pgtype.Numeric{}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// ParseFloat parses a decimal cell, accepting a comma separator.
func ParseFloat(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Float8{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ParseInt parses an integer cell. Values like "25.0" that spreadsheets
// produce for whole numbers are truncated, not rejected.
func ParseInt(s string) pgtype.Int4 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int4{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(f), Valid: true}
}

// ParseText wraps a cell as pgtype.Text; empty cells become NULL.
func ParseText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// pgDate wraps a time.Time as a non-NULL pgtype.Date.
func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}

// ParseRideStatus normalizes a status cell. Unrecognized values default to
// completed, matching the upstream dashboard's behavior.
func ParseRideStatus(s string) RideStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "concluida", "concluída", "completed":
		return RideCompleted
	case "cancelada", "cancelled":
		return RideCancelled
	case "perdida", "lost":
		return RideLost
	default:
		return RideCompleted
	}
}

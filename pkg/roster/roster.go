// Package roster turns uploaded CSV or XLSX recipient lists into entries.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Entry is one resolved roster row.
type Entry struct {
	Name  string
	ID    string
	Email string
}

// Result holds resolved entries and the number of blank rows dropped.
type Result struct {
	Entries []Entry
	Skipped int
}

// Accepted header aliases per field, in priority order.
var (
	NameAliases  = []string{"name", "fullname", "full name", "student name", "staff name"}
	IDAliases    = []string{"regid", "reg id", "registration id", "staffid", "staff id", "id"}
	EmailAliases = []string{"email", "e-mail", "mail"}
)

var (
	// ErrUnsupportedFormat is returned for files other than .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("roster must be a .csv or .xlsx file")
	// ErrNoColumns is returned when neither a name nor an id column can be found.
	ErrNoColumns = errors.New("roster has no recognizable name or id column")
	// ErrEmpty is returned when the file has no header row.
	ErrEmpty = errors.New("roster is empty")
)

// Columns maps each field to its column index, -1 when absent.
type Columns struct {
	Name  int
	ID    int
	Email int
}

// ResolveColumns picks, for each field, the column whose header equals the
// earliest matching alias. Headers are compared trimmed and case-insensitively.
func ResolveColumns(headers []string) Columns {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}
	return Columns{
		Name:  lookup(normalized, NameAliases),
		ID:    lookup(normalized, IDAliases),
		Email: lookup(normalized, EmailAliases),
	}
}

func lookup(headers []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// Resolve converts a header row plus data rows into entries.
func Resolve(rows [][]string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrEmpty
	}
	cols := ResolveColumns(rows[0])
	if cols.Name < 0 && cols.ID < 0 {
		return Result{}, ErrNoColumns
	}

	result := Result{Entries: make([]Entry, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		entry := Entry{
			Name:  cell(row, cols.Name),
			ID:    cell(row, cols.ID),
			Email: cell(row, cols.Email),
		}
		if entry.Name == "" && entry.ID == "" && entry.Email == "" {
			result.Skipped++
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Parse reads r according to the file extension and resolves its rows.
func Parse(filename string, r io.Reader) (Result, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = ReadCSV(r)
	case ".xlsx":
		rows, err = ReadXLSX(r)
	default:
		return Result{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Result{}, err
	}
	return Resolve(rows)
}

// ReadCSV returns all records of a CSV document, tolerating ragged rows.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv roster: %w", err)
	}
	return rows, nil
}

// ReadXLSX returns the rows of the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx roster: %w", err)
	}
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open xlsx roster: %w", err)
	}
	defer book.Close() //nolint:errcheck

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

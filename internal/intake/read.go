package intake

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/splice/internal/ir"
)

var (
	// ErrUnsupported is returned for files that are not .json, .csv or .xlsx.
	ErrUnsupported = errors.New("intake: unsupported file type")

	// ErrEmpty is returned when a file holds no submission row.
	ErrEmpty = errors.New("intake: no submission in file")
)

// DefaultResponsesSheet is the sheet a form writes responses into.
const DefaultResponsesSheet = "Form responses 1"

// Supported reports whether ReadFile can decode path, by extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadFile decodes the submission in path. sheet names the responses sheet
// of an .xlsx file; empty means DefaultResponsesSheet.
func ReadFile(path, sheet string) (ir.AnswerVector, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return ReadJSON(bytes.NewReader(data))
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// ReadHeader returns the header row of a .csv or .xlsx responses export.
func ReadHeader(path, sheet string) ([]string, error) {
	rows, err := readTable(path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no header", ErrEmpty, path)
	}
	return rows[0], nil
}

type jsonSubmission struct {
	Answers []any `json:"answers"`
}

// ReadJSON decodes a JSON array of answers, or an object whose "answers"
// field is one. Nested arrays are joined into single cells.
func ReadJSON(r io.Reader) (ir.AnswerVector, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if data[0] == '{' {
		var sub jsonSubmission
		if err := dec.Decode(&sub); err != nil {
			return nil, fmt.Errorf("decode json submission: %w", err)
		}
		raw = sub.Answers
	} else if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json submission: %w", err)
	}

	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	return ir.Flatten(raw), nil
}

// ReadCSV returns the last row of a responses export. The first row is the
// header and is never a submission.
func ReadCSV(r io.Reader) (ir.AnswerVector, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return lastSubmission(rows)
}

// ReadXLSX returns the last row of the responses sheet in a workbook.
func ReadXLSX(path, sheet string) (ir.AnswerVector, error) {
	rows, err := readXLSX(path, sheet)
	if err != nil {
		return nil, err
	}
	return lastSubmission(rows)
}

func readTable(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		defer f.Close()
		return readCSV(f)
	case ".xlsx":
		return readXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %s has no header row", ErrUnsupported, path)
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	if sheet == "" {
		sheet = DefaultResponsesSheet
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

// lastSubmission picks the newest data row and pads it to the header
// width. Spreadsheet readers drop trailing blank cells, but an unanswered
// last question is still a cell.
func lastSubmission(rows [][]string) (ir.AnswerVector, error) {
	if len(rows) < 2 {
		return nil, ErrEmpty
	}
	last := rows[len(rows)-1]
	width := max(len(rows[0]), len(last))
	cells := make([]string, width)
	copy(cells, last)
	return ir.NewAnswerVector(cells...), nil
}

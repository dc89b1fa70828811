// Package ingest reads branch spreadsheets into rows ready for storage.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/filialcluster/internal/frame"
)

// ErrEmptySheet is returned when the selected sheet has no header row.
var ErrEmptySheet = errors.New("sheet has no header row")

// Sheet is a spreadsheet read into a header and typed rows. Cells are
// int64, float64, string or nil for empty cells.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// ReadXLSX reads one sheet of an .xlsx workbook. If sheetName is empty,
// sheetIndex (1-based) selects the sheet; values <= 0 select the first.
func ReadXLSX(path, sheetName string, sheetIndex int) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook '%s' has no sheets", filepath.Base(path))
	}
	target := ""
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := sheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range; workbook '%s' has %d sheets",
				idx, filepath.Base(path), len(sheets))
		}
		target = sheets[idx-1]
	}

	raw, err := f.GetRows(target, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	return fromRecords(target, raw)
}

// fromRecords turns a header row plus data rows into a Sheet. Fully blank
// rows are skipped and short rows are padded with nil.
func fromRecords(name string, raw [][]string) (*Sheet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySheet)
	}
	header := raw[0]
	// trailing empty header cells are layout, not columns
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySheet)
	}
	cols := make([]string, len(header))
	seen := map[string]bool{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			return nil, fmt.Errorf("sheet %s: column %d has an empty header", name, i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("sheet %s: duplicate column header %q", name, h)
		}
		seen[h] = true
		cols[i] = h
	}

	out := &Sheet{Name: name, Columns: cols}
	for _, r := range raw[1:] {
		if blank(r) {
			continue
		}
		row := make([]any, len(cols))
		for j := range cols {
			if j < len(r) {
				row[j] = cellValue(r[j])
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cellValue types a raw cell: integers stay integers so branch ids and
// counts round-trip exactly.
func cellValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, ok := frame.ParseNumber(s)
	if !ok {
		return s
	}
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 && !strings.ContainsAny(s, ".,eE%") {
		return int64(v)
	}
	return v
}

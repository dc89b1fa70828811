package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Options selects what to read from a source file.
type Options struct {
	SheetName  string
	SheetIndex int
	// Delimiter for CSV. If 0, ';' is used when the header contains more
	// semicolons than commas, ',' otherwise; .tsv files use a tab.
	Delimiter rune
}

// Read loads a branch table from an .xlsx, .csv or .tsv file.
func Read(path string, opt Options) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, opt.SheetName, opt.SheetIndex)
	case ".csv", ".tsv", ".txt":
		return ReadCSV(path, opt.Delimiter)
	}
	return nil, fmt.Errorf("unsupported file type %q (use .xlsx, .csv or .tsv)", filepath.Ext(path))
}

// ReadCSV reads a delimited text file whose first record is the header.
func ReadCSV(path string, delim rune) (*Sheet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	if delim == 0 {
		delim = sniffDelimiter(path, string(b))
	}
	r := csv.NewReader(strings.NewReader(string(b)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim
	raw, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(filepath.Base(path), raw)
}

func sniffDelimiter(path, content string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	header := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		header = content[:i]
	}
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

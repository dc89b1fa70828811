package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]any, order ...string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			vals := row
			require.NoError(t, f.SetSheetRow(name, cell, &vals))
		}
	}
	path := filepath.Join(t.TempDir(), "filialdata.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadXLSXFirstSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Daten": {
			{"FILIALE", "B_LAND", "Umsatz", "Kund. Anz."},
			{1, "Wien", 2500000.5, 1400},
			{2, "Tirol", nil, 900},
			{},
			{3, "Kärnten", 1800000.25, 1100},
		},
		"Notes": {{"x"}},
	}, "Daten", "Notes")

	s, err := ReadXLSX(path, "", 0)
	require.NoError(t, err)
	require.Equal(t, "Daten", s.Name)
	require.Equal(t, []string{"FILIALE", "B_LAND", "Umsatz", "Kund. Anz."}, s.Columns)
	require.Len(t, s.Rows, 3)
	require.Equal(t, int64(1), s.Rows[0][0])
	require.Equal(t, "Wien", s.Rows[0][1])
	require.InDelta(t, 2500000.5, s.Rows[0][2], 1e-9)
	require.Equal(t, int64(1400), s.Rows[0][3])
	require.Nil(t, s.Rows[1][2])
	require.Equal(t, "Kärnten", s.Rows[2][1])
}

func TestReadXLSXSelectSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"A": {{"x"}, {1}},
		"B": {{"y"}, {2}},
	}, "A", "B")

	s, err := ReadXLSX(path, "b", 0)
	require.NoError(t, err)
	require.Equal(t, "B", s.Name)
	require.Equal(t, []string{"y"}, s.Columns)

	s, err = ReadXLSX(path, "", 2)
	require.NoError(t, err)
	require.Equal(t, "B", s.Name)

	_, err = ReadXLSX(path, "C", 0)
	require.ErrorContains(t, err, "Available sheets: A, B")

	_, err = ReadXLSX(path, "", 3)
	require.Error(t, err)
}

func TestReadXLSXRejectsDuplicateHeaders(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"S": {{"a", "a"}, {1, 2}},
	}, "S")
	_, err := ReadXLSX(path, "", 0)
	require.ErrorContains(t, err, "duplicate column header")
}

func TestCellValue(t *testing.T) {
	require.Nil(t, cellValue("  "))
	require.Equal(t, int64(42), cellValue("42"))
	require.Equal(t, 0.25, cellValue("0.25"))
	require.Equal(t, 1000.0, cellValue("1e3"))
	require.Equal(t, "Wien", cellValue("Wien"))
}

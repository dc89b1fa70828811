package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadCSVSemicolonDecimalComma(t *testing.T) {
	p := writeFile(t, "filialen.csv", "FILIALE;B_LAND;Aktionsanteil\n1;Wien;0,25\n2;Tirol;\n")
	s, err := Read(p, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"FILIALE", "B_LAND", "Aktionsanteil"}, s.Columns)
	require.Len(t, s.Rows, 2)
	require.Equal(t, int64(1), s.Rows[0][0])
	require.Equal(t, 0.25, s.Rows[0][2])
	require.Nil(t, s.Rows[1][2])
}

func TestReadCSVComma(t *testing.T) {
	p := writeFile(t, "filialen.csv", "FILIALE,Umsatz\n7,1200.5\n")
	s, err := Read(p, Options{})
	require.NoError(t, err)
	require.Equal(t, 1200.5, s.Rows[0][1])
}

func TestReadTSV(t *testing.T) {
	p := writeFile(t, "filialen.tsv", "FILIALE\tB_LAND\n3\tSalzburg\n")
	s, err := Read(p, Options{})
	require.NoError(t, err)
	require.Equal(t, "Salzburg", s.Rows[0][1])
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := Read(writeFile(t, "data.json", "{}"), Options{})
	require.ErrorContains(t, err, "unsupported file type")
}

func TestReadEmptyCSV(t *testing.T) {
	_, err := Read(writeFile(t, "empty.csv", ""), Options{})
	require.ErrorIs(t, err, ErrEmptySheet)
}

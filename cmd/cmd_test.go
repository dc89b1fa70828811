package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "github.com/KaramelBytes/filialcluster/internal/config"
	"github.com/KaramelBytes/filialcluster/internal/frame"
	"github.com/KaramelBytes/filialcluster/internal/plot"
	"github.com/KaramelBytes/filialcluster/internal/schema"
	"github.com/KaramelBytes/filialcluster/internal/storage"
)

// execCmd executes the root command with args and returns its error.
func execCmd(t *testing.T, args ...string) error {
	t.Helper()
	// Reset sticky flags that may persist Changed state across invocations
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range []*cobra.Command{rootCmd, ingestCmd, describeCmd, sampleCmd} {
		c.Flags().VisitAll(reset)
	}
	cfg, loadErr = nil, nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(t, args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

// isolate points HOME and every output at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("FILIALCLUSTER_UMAP_IMAGE", filepath.Join(home, "UMAP.png"))
	t.Setenv("FILIALCLUSTER_DBSCAN_IMAGE", filepath.Join(home, "DBSCAN.png"))
	t.Setenv("FILIALCLUSTER_IMAGE_WIDTH_IN", "5")
	t.Setenv("FILIALCLUSTER_IMAGE_HEIGHT_IN", "4")
	t.Setenv("FILIALCLUSTER_EPOCHS", "40")
	return home
}

func TestCLI_SampleThenRun(t *testing.T) {
	home := isolate(t)
	db := filepath.Join(home, "filialdata.db")
	report := filepath.Join(home, "report.json")

	runCmd(t, "--db", db, "sample", "--rows", "50", "--regions", "3")
	runCmd(t, "--db", db, "describe", "-o", filepath.Join(home, "summary.md"))
	runCmd(t, "--db", db, "0.5", "5", "--report", report)

	for _, name := range []string{"UMAP.png", "DBSCAN.png"} {
		if _, err := os.Stat(filepath.Join(home, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	md, err := os.ReadFile(filepath.Join(home, "summary.md"))
	if err != nil || !strings.Contains(string(md), "[DATASET SUMMARY]") {
		t.Fatalf("summary: %v %q", err, md)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Rows      int    `json:"rows"`
		TrainRows int    `json:"train_rows"`
		Labels    []int  `json:"labels"`
		RunID     string `json:"run_id"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Rows != 50 || rep.TrainRows != 40 || len(rep.Labels) != 40 || rep.RunID == "" {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestCLI_MissingDatabaseExitsWithStorageCode(t *testing.T) {
	home := isolate(t)
	err := execCmd(t, "--db", filepath.Join(home, "absent.db"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", got, exitFailure, err)
	}
}

func TestCLI_MissingColumnExitsWithDataCode(t *testing.T) {
	home := isolate(t)
	db := filepath.Join(home, "partial.db")
	csv := filepath.Join(home, "partial.csv")
	content := "FILIALE;B_LAND;Umsatz\n1;Wien;100\n2;Tirol;200\n"
	if err := os.WriteFile(csv, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, "--db", db, "ingest", csv)

	err := execCmd(t, "--db", db)
	var se *schema.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if got := exitCode(err); got != exitData {
		t.Fatalf("exit code = %d, want %d", got, exitData)
	}
	if _, statErr := os.Stat(filepath.Join(home, "UMAP.png")); !os.IsNotExist(statErr) {
		t.Fatalf("image written despite schema failure")
	}

	err = execCmd(t, "--db", db, "describe")
	if !errors.As(err, &se) {
		t.Fatalf("describe: expected SchemaError, got %v", err)
	}
}

func TestCLI_BadArgumentsAreUsageErrors(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{
		{"abc"},
		{"0.5", "x"},
		{"-0.5"},
		{"0.5", "5", "extra"},
		{"NaN", "5"},
	} {
		err := execCmd(t, args...)
		if got := exitCode(err); got != exitUsage {
			t.Fatalf("args %v: exit code = %d, want %d (%v)", args, got, exitUsage, err)
		}
	}
}

func TestCLI_NaNTrainSizeIsUsageError(t *testing.T) {
	home := isolate(t)
	db := filepath.Join(home, "filialdata.db")
	runCmd(t, "--db", db, "sample", "--rows", "20")
	t.Setenv("FILIALCLUSTER_TRAIN_SIZE", "NaN")

	err := execCmd(t, "--db", db)
	if !errors.Is(err, cfgpkg.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if got := exitCode(err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("eps: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, "--config", cfgPath, "config", "set", "min_samples", "7")
	runCmd(t, "--config", cfgPath, "config", "set", "drop_columns", "Anteil Feinkost, Anteil Tiefkühl")

	c, err := cfgpkg.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if c.MinSamples != 7 {
		t.Fatalf("min_samples = %d", c.MinSamples)
	}
	if strings.Join(c.DropColumns, "|") != "Anteil Feinkost|Anteil Tiefkühl" {
		t.Fatalf("drop_columns = %v", c.DropColumns)
	}
	runCmd(t, "--config", cfgPath, "config", "show")

	err = execCmd(t, "--config", cfgPath, "config", "set", "train_size", "1.5")
	if !errors.Is(err, cfgpkg.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	err = execCmd(t, "--config", cfgPath, "config", "set", "train_size", "NaN")
	if !errors.Is(err, cfgpkg.ErrInvalid) {
		t.Fatalf("NaN train_size: expected ErrInvalid, got %v", err)
	}
	err = execCmd(t, "--config", cfgPath, "config", "set", "nope", "1")
	if got := exitCode(err); got != exitUsage {
		t.Fatalf("unknown key exit code = %d", got)
	}
}

func TestParseParams(t *testing.T) {
	cases := []struct {
		args    []string
		eps     float64
		min     int
		wantErr bool
	}{
		{nil, 0.5, 5, false},
		{[]string{"0.3"}, 0.3, 5, false},
		{[]string{"1", "10"}, 1, 10, false},
		{[]string{"0"}, 0, 0, true},
		{[]string{"0.5", "0"}, 0, 0, true},
		{[]string{"0.5", "2.5"}, 0, 0, true},
		{[]string{"NaN"}, 0, 0, true},
		{[]string{"nan", "5"}, 0, 0, true},
		{[]string{"+Inf"}, 0, 0, true},
	}
	for _, tc := range cases {
		eps, min, err := parseParams(tc.args, 0.5, 5)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%v: expected error", tc.args)
			}
			continue
		}
		if err != nil || eps != tc.eps || min != tc.min {
			t.Fatalf("%v: got (%v, %d, %v)", tc.args, eps, min, err)
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("connect: %w", &storage.ConnectionError{Path: "x.db", Err: os.ErrNotExist}), exitFailure},
		{fmt.Errorf("load: %w", &storage.QueryError{Table: "t", Err: errors.New("no such table")}), exitFailure},
		{fmt.Errorf("validate: %w", &schema.SchemaError{Missing: []string{"Umsatz"}}), exitData},
		{&frame.DuplicateKeyError{Column: "FILIALE", Keys: []string{"3"}}, exitData},
		{fmt.Errorf("plot: %w", &plot.IOError{Path: "img/UMAP.png", Err: os.ErrNotExist}), exitOutput},
		{fmt.Errorf("%w: eps", cfgpkg.ErrInvalid), exitUsage},
		{usageErrorf("bad"), exitUsage},
		{errors.New("other"), exitFailure},
	}
	for i, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("case %d (%v): got %d, want %d", i, tc.err, got, tc.want)
		}
	}
}

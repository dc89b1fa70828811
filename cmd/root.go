package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KaramelBytes/filialcluster/internal/cluster"
	cfgpkg "github.com/KaramelBytes/filialcluster/internal/config"
	"github.com/KaramelBytes/filialcluster/internal/pipeline"
	"github.com/KaramelBytes/filialcluster/internal/utils"
)

const usageHint = "Usage: filialcluster <arg1: epsilon value> <arg2: min_samples for DBSCAN>"

var (
	// Global flags
	cfgFile string
	dbPath  string
	debug   bool

	runReport string

	// Loaded configuration
	cfg     *cfgpkg.Global
	loadErr error
)

var rootCmd = &cobra.Command{
	Use:   "filialcluster [eps] [min_samples]",
	Short: "Cluster retail branches from a SQLite table and plot the result",
	Long: `filialcluster loads the branch table from SQLite, validates and cleans it,
projects the training rows to two dimensions with UMAP and clusters the
projection with DBSCAN. Two scatter plots are written: one colored by region,
one by cluster.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 2 {
			return usageErrorf("expected at most 2 arguments, got %d", len(args))
		}
		return nil
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(usageHint)
		c, err := requireConfig()
		if err != nil {
			return err
		}
		eps, minSamples, err := parseParams(args, c.Eps, c.MinSamples)
		if err != nil {
			return err
		}
		c.Eps, c.MinSamples = eps, minSamples
		fmt.Printf("Passed params epsilon: %v and min_samples: %d\n", eps, minSamples)

		log, err := newLogger(c.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		rep, err := pipeline.Run(cmd.Context(), c, log)
		if err != nil {
			return err
		}
		fmt.Printf("The shape of the dataset is: (%d, %d)\n", rep.Rows, rep.Columns)
		fmt.Println("✓ All columns exist")
		if len(rep.Filled) > 0 {
			fmt.Printf("⚠ Filled missing values in %d columns (%d rows affected)\n", len(rep.Filled), rep.Missing)
		}
		fmt.Printf("✓ Split %d rows: %d train, %d test\n", rep.TrainRows+rep.TestRows, rep.TrainRows, rep.TestRows)
		fmt.Printf("✓ DBSCAN found %d clusters, %d noise points\n", rep.Clusters.Clusters, rep.Clusters.Noise)
		for _, l := range rep.Clusters.Labels() {
			if l == cluster.Noise {
				continue
			}
			fmt.Printf("  cluster %d: %d branches\n", l, rep.Clusters.Sizes[l])
		}
		for _, p := range rep.Images {
			fmt.Printf("✓ Wrote %s\n", p)
		}
		if runReport != "" {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(runReport, b); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Printf("✓ Report saved to %s\n", runReport)
		}
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.filialcluster/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&runReport, "report", "", "write a JSON run report to this path")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg, loadErr = nil, err
		return
	}
	cfg, loadErr = c, nil

	// Apply CLI overrides if provided
	if f := rootCmd.PersistentFlags(); f.Changed("db") && dbPath != "" {
		cfg.Database = dbPath
	}
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if loadErr != nil {
			return nil, &usageError{err: fmt.Errorf("load config: %w", loadErr)}
		}
		return nil, usageErrorf("no configuration loaded")
	}
	return cfg, nil
}

// parseParams reads the optional positional eps and min_samples.
func parseParams(args []string, eps float64, minSamples int) (float64, int, error) {
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || math.IsInf(v, 0) || !(v > 0) {
			return 0, 0, usageErrorf("epsilon must be a positive number, got %q", args[0])
		}
		eps = v
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return 0, 0, usageErrorf("min_samples must be a positive integer, got %q", args[1])
		}
		minSamples = v
	}
	return eps, minSamples, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, usageErrorf("invalid log_level %q", level)
	}
	if debug {
		lvl = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = !debug
	return zc.Build()
}

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/filialcluster/internal/schema"
)

// Global configuration structure. Every stage of the pipeline reads its
// parameters from here instead of package-level constants.
type Global struct {
	Database string `mapstructure:"database" yaml:"database"`
	Table    string `mapstructure:"table" yaml:"table"`

	// Schema
	IndexColumn     string   `mapstructure:"index_column" yaml:"index_column"`
	LabelColumn     string   `mapstructure:"label_column" yaml:"label_column"`
	RequiredColumns []string `mapstructure:"required_columns" yaml:"required_columns"`
	DropColumns     []string `mapstructure:"drop_columns" yaml:"drop_columns"`

	// Outputs
	UMAPImage     string  `mapstructure:"umap_image" yaml:"umap_image"`
	DBSCANImage   string  `mapstructure:"dbscan_image" yaml:"dbscan_image"`
	ImageWidthIn  float64 `mapstructure:"image_width_in" yaml:"image_width_in"`
	ImageHeightIn float64 `mapstructure:"image_height_in" yaml:"image_height_in"`

	// Split and projection
	TrainSize  float64 `mapstructure:"train_size" yaml:"train_size"`
	Seed       int64   `mapstructure:"seed" yaml:"seed"`
	Scale      bool    `mapstructure:"scale" yaml:"scale"`
	NNeighbors int     `mapstructure:"n_neighbors" yaml:"n_neighbors"`
	MinDist    float64 `mapstructure:"min_dist" yaml:"min_dist"`
	Epochs     int     `mapstructure:"epochs" yaml:"epochs"`

	// Clustering
	Eps        float64 `mapstructure:"eps" yaml:"eps"`
	MinSamples int     `mapstructure:"min_samples" yaml:"min_samples"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Default returns the built-in configuration for the branch dataset.
func Default() *Global {
	return &Global{
		Database:        "filialdata.db",
		Table:           "filialdata",
		IndexColumn:     schema.ColBranch,
		LabelColumn:     schema.ColRegion,
		RequiredColumns: schema.RequiredColumns(),
		DropColumns:     append([]string(nil), schema.DropColumns...),
		UMAPImage:       filepath.Join("img", "UMAP.png"),
		DBSCANImage:     filepath.Join("img", "DBSCAN.png"),
		ImageWidthIn:    20,
		ImageHeightIn:   12,
		TrainSize:       0.8,
		Seed:            42,
		NNeighbors:      15,
		MinDist:         0.1,
		Epochs:          0,
		Eps:             0.5,
		MinSamples:      5,
		LogLevel:        "info",
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.filialcluster/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first if present; it never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("FILIALCLUSTER")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("database", d.Database)
	v.SetDefault("table", d.Table)
	v.SetDefault("index_column", d.IndexColumn)
	v.SetDefault("label_column", d.LabelColumn)
	v.SetDefault("required_columns", d.RequiredColumns)
	v.SetDefault("drop_columns", d.DropColumns)
	v.SetDefault("umap_image", d.UMAPImage)
	v.SetDefault("dbscan_image", d.DBSCANImage)
	v.SetDefault("image_width_in", d.ImageWidthIn)
	v.SetDefault("image_height_in", d.ImageHeightIn)
	v.SetDefault("train_size", d.TrainSize)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("scale", d.Scale)
	v.SetDefault("n_neighbors", d.NNeighbors)
	v.SetDefault("min_dist", d.MinDist)
	v.SetDefault("epochs", d.Epochs)
	v.SetDefault("eps", d.Eps)
	v.SetDefault("min_samples", d.MinSamples)
	v.SetDefault("log_level", d.LogLevel)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (c *Global) Validate() error {
	switch {
	case c.Database == "":
		return fmt.Errorf("%w: database must be set", ErrInvalid)
	case c.Table == "":
		return fmt.Errorf("%w: table must be set", ErrInvalid)
	case c.IndexColumn == "" || c.LabelColumn == "":
		return fmt.Errorf("%w: index_column and label_column must be set", ErrInvalid)
	case c.UMAPImage == "" || c.DBSCANImage == "":
		return fmt.Errorf("%w: output image paths must be set", ErrInvalid)
	case filepath.Clean(c.UMAPImage) == filepath.Clean(c.DBSCANImage):
		return fmt.Errorf("%w: umap_image and dbscan_image must differ", ErrInvalid)
	case !positive(c.ImageWidthIn) || !positive(c.ImageHeightIn):
		return fmt.Errorf("%w: image size must be positive", ErrInvalid)
	case !(c.TrainSize > 0 && c.TrainSize < 1):
		return fmt.Errorf("%w: train_size must be in (0, 1), got %v", ErrInvalid, c.TrainSize)
	case c.NNeighbors < 2:
		return fmt.Errorf("%w: n_neighbors must be at least 2, got %d", ErrInvalid, c.NNeighbors)
	case !(c.MinDist >= 0) || math.IsInf(c.MinDist, 1):
		return fmt.Errorf("%w: min_dist must be a finite non-negative number, got %v", ErrInvalid, c.MinDist)
	case c.Epochs < 0:
		return fmt.Errorf("%w: epochs must not be negative", ErrInvalid)
	case !positive(c.Eps):
		return fmt.Errorf("%w: eps must be positive, got %v", ErrInvalid, c.Eps)
	case c.MinSamples < 1:
		return fmt.Errorf("%w: min_samples must be at least 1, got %d", ErrInvalid, c.MinSamples)
	}
	for _, d := range c.DropColumns {
		if d == c.IndexColumn || d == c.LabelColumn {
			return fmt.Errorf("%w: drop_columns must not contain %q", ErrInvalid, d)
		}
	}
	return nil
}

// positive reports whether v is a finite number above zero. NaN fails.
func positive(v float64) bool { return v > 0 && !math.IsInf(v, 1) }

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".filialcluster"), nil
}

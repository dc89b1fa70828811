package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/filialcluster/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set filialcluster configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Print(string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return &usageError{err: err}
			}
			cfg = c
		}
		if err := setKey(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "database":
		c.Database = val
	case "table":
		c.Table = val
	case "index_column":
		c.IndexColumn = val
	case "label_column":
		c.LabelColumn = val
	case "required_columns":
		c.RequiredColumns = splitList(val)
	case "drop_columns":
		c.DropColumns = splitList(val)
	case "umap_image":
		c.UMAPImage = val
	case "dbscan_image":
		c.DBSCANImage = val
	case "log_level":
		c.LogLevel = val
	case "image_width_in", "image_height_in", "train_size", "min_dist", "eps":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return usageErrorf("invalid float for %s: %v", key, val)
		}
		switch key {
		case "image_width_in":
			c.ImageWidthIn = f
		case "image_height_in":
			c.ImageHeightIn = f
		case "train_size":
			c.TrainSize = f
		case "min_dist":
			c.MinDist = f
		case "eps":
			c.Eps = f
		}
	case "n_neighbors", "epochs", "min_samples":
		i, err := strconv.Atoi(val)
		if err != nil {
			return usageErrorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "n_neighbors":
			c.NNeighbors = i
		case "epochs":
			c.Epochs = i
		case "min_samples":
			c.MinSamples = i
		}
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return usageErrorf("invalid int for seed: %v", val)
		}
		c.Seed = i
	case "scale":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return usageErrorf("invalid bool for scale: %v", val)
		}
		c.Scale = b
	default:
		return usageErrorf("unknown key: %s", key)
	}
	return nil
}

// splitList parses a comma separated column list.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filialcluster/internal/storage"
	"github.com/KaramelBytes/filialcluster/internal/synth"
)

var (
	sampleRows    int
	sampleRegions int
	sampleSeed    int64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a synthetic branch table for trying out the pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if sampleRows < 1 {
			return usageErrorf("--rows must be at least 1")
		}
		cols, rows := synth.Branches(sampleRows, sampleRegions, sampleSeed)
		store, err := storage.OpenWritable(cmd.Context(), c.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.ReplaceTable(cmd.Context(), c.Table, cols, rows)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d synthetic branches to %s:%s\n", n, store.Path(), c.Table)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVar(&sampleRows, "rows", 50, "number of branches")
	sampleCmd.Flags().IntVar(&sampleRegions, "regions", 3, "number of distinct regions")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 42, "random seed")
}

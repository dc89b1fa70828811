package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filialcluster/internal/schema"
	"github.com/KaramelBytes/filialcluster/internal/storage"
	"github.com/KaramelBytes/filialcluster/internal/utils"
)

var descOutputPath string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Profile the stored branch table and check it against the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cmd.Context(), c.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		f, err := store.LoadTable(cmd.Context(), c.Table)
		if err != nil {
			if tables, terr := store.Tables(cmd.Context()); terr == nil && len(tables) > 0 {
				fmt.Printf("⚠ Available tables: %s\n", strings.Join(tables, ", "))
			}
			return err
		}
		md := f.Markdown(c.Table)
		if descOutputPath != "" {
			if err := utils.SafeWriteFile(descOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			fmt.Printf("✓ Summary saved to %s\n", descOutputPath)
		} else {
			fmt.Print(md)
		}

		required := append([]string{c.IndexColumn}, c.RequiredColumns...)
		if err := schema.Validate(f, required); err != nil {
			var se *schema.SchemaError
			if errors.As(err, &se) {
				fmt.Printf("⚠ Missing %d required columns\n", len(se.Missing))
			}
			return err
		}
		fmt.Println("✓ All columns exist")
		if err := schema.CheckKinds(f, schema.Branch); err != nil {
			return err
		}
		fmt.Println("✓ Column types match the branch schema")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "write the summary to a file instead of stdout")
}

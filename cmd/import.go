package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tenderedge/postaward/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import award records from an .xlsx or .csv sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ingest.ImportFile(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "import file")
		}
		if len(res.Awards) > 0 {
			if err := rebuildAll(ctx, st); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows read, %d new awards, %d skipped\n", res.Rows, len(res.Awards), res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

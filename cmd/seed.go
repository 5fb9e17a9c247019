package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenderedge/postaward/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo award records and rebuild intelligence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := seed.Load(ctx, st)
		if err != nil {
			return err
		}
		if err := rebuildAll(ctx, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d demo award records seeded\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		return st.Close()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, migrateCmd)
}

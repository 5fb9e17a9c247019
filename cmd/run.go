package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runSince string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest new awards and rebuild all intelligence once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := newPipeline(st)
		if err != nil {
			return err
		}
		sum, err := p.Run(ctx, runSince)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the pipeline on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := newPipeline(st)
		if err != nil {
			return err
		}
		interval := time.Duration(cfg.Schedule.IntervalHours) * time.Hour
		p.Watch(ctx, interval)
		zap.L().Info("watch mode stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSince, "since", "", "only fetch awards published since this date (YYYY-MM-DD or RFC3339)")
	rootCmd.AddCommand(runCmd, watchCmd)
}

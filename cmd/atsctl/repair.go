package main

import (
	"errors"

	"ats-scorer-go/internal/app"
	"ats-scorer-go/internal/logger"
	"ats-scorer-go/internal/processor"
	"ats-scorer-go/internal/storage"

	"github.com/spf13/cobra"
)

var repairOpts processor.RequeueOptions

var requeueCmd = &cobra.Command{
	Use:   "requeue-stale",
	Short: "Queue again analyses a worker abandoned or gave up on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		log := logger.Component(name)

		st, err := storage.NewStorage(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()
		if st.MySQL == nil {
			return errors.New("requeue-stale needs mysql")
		}

		a, err := app.Build(ctx, cfg, st, log)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Service.RequeueStale(ctx, repairOpts)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	f := requeueCmd.Flags()
	f.DurationVar(&repairOpts.StuckFor, "stuck-for", 0, "age after which a PROCESSING analysis counts as abandoned (default 10m)")
	f.BoolVar(&repairOpts.IncludeFailed, "include-failed", false, "also requeue FAILED analyses")
	f.IntVar(&repairOpts.Limit, "limit", 100, "maximum analyses per run")
	f.IntVar(&repairOpts.Concurrency, "concurrency", 5, "analyses requeued in parallel")
	f.BoolVar(&repairOpts.DryRun, "dry-run", false, "only list what would be requeued")

	rootCmd.AddCommand(requeueCmd)
}

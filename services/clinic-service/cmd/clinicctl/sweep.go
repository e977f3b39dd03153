package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/oralflow/oralflow/libs/config"
	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/libs/runtime"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
	"github.com/oralflow/oralflow/services/clinic-service/internal/sweep"
)

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a periodic sweep once",
	}

	var dryRun bool
	autocancel := &cobra.Command{
		Use:   "autocancel",
		Short: "Cancel pending appointments past their confirmation deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSweeper(cmd, func(s *sweep.Sweeper) (sweep.Result, error) {
				return s.AutoCancel(cmd.Context(), dryRun)
			})
		},
	}
	autocancel.Flags().BoolVar(&dryRun, "dry-run", false, "list the appointments without cancelling them")

	reminders := &cobra.Command{
		Use:   "reminders",
		Short: "Queue reminders for upcoming pending appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSweeper(cmd, func(s *sweep.Sweeper) (sweep.Result, error) {
				return s.Reminders(cmd.Context())
			})
		},
	}

	cmd.AddCommand(autocancel, reminders)
	return cmd
}

func withSweeper(cmd *cobra.Command, run func(*sweep.Sweeper) (sweep.Result, error)) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	loc, err := config.Location("CLINIC_TIMEZONE", "America/Guayaquil")
	if err != nil {
		return err
	}
	logger := runtime.NewLogger("clinicctl")

	ctx, stop := runtime.ParentSignalContext(cmd.Context())
	defer stop()
	cmd.SetContext(ctx)

	pool, err := db.Open(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	provider := policy.NewStoreProvider(storage.NewPolicyRepository(pool), logger)
	s := sweep.New(pool, provider, outbox.NewRepository(), nil, logger, sweep.Config{
		Location:     loc,
		ReminderLead: time.Duration(config.Int("REMINDER_LEAD_HOURS", 24)) * time.Hour,
	})
	res, err := run(s)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

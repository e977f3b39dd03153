// Command clinicctl runs maintenance tasks for the clinic service: schema migrations,
// one-off sweeps and development tokens.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/oralflow/oralflow/libs/config"
)

func main() {
	_ = config.LoadDotEnv()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Maintenance commands for the clinic service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("database-url", "", "database URL (default $DATABASE_URL)")

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newTokenCommand())
	return cmd
}

func databaseURL(cmd *cobra.Command) (string, error) {
	url, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}
	return config.RequiredString("DATABASE_URL")
}

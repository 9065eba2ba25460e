/*
main.go - Application entry point

PURPOSE:
  Command-line entry point of the schedule engine. The root command carries
  the shared flags; subcommands serve the HTTP API or plan/apply a schedule
  document directly against the database.

COMMANDS:
  serve    Run the HTTP API (optionally with the retry sweep)
  plan     Print the override operations a document would cause
  apply    Create or update a schedule from a document

GLOBAL FLAGS:
  --db         SQLite database path (default: schedules.db)
               Use ":memory:" for in-memory database
  --page-size  Page size of schedule and override listings (default: 50)
  --log-level  logrus level: debug, info, warn, error (default: info)

EXAMPLES:
  # Run with file database and retries every 30s
  ./server serve --db=./data/schedules.db --retry --retry-interval=30s

  # Preview a change
  ./server plan --file=support.yaml

  # Apply it
  ./server apply --file=support.yaml

SEE ALSO:
  - serve.go: HTTP server and graceful shutdown
  - plan.go: plan and apply commands
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/schedule-engine/api"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath   string
	PageSize int
	LogLevel string

	log *logrus.Logger
}

func newRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Schedule engine",
		Long:  "Hours-of-operation schedules with reconciled overrides, served over HTTP or applied from documents.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(opts.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			opts.log = logrus.New()
			opts.log.SetOutput(cmd.ErrOrStderr())
			opts.log.SetLevel(level)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "schedules.db", "SQLite database path")
	cmd.PersistentFlags().IntVar(&opts.PageSize, "page-size", schedule.DefaultPageSize, "listing page size")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newApplyCommand(opts))

	return cmd
}

// openHandler opens the store and wires the API handler over it.
func (o *RootOptions) openHandler() (*api.Handler, func(), error) {
	store, err := sqlite.New(o.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store.SetPageSize(o.PageSize)
	return api.NewHandler(store, o.log), func() { store.Close() }, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/schedule-engine/factory"
	"github.com/warp/schedule-engine/schedule"
)

// DocumentOptions holds flags for commands that read a schedule document.
type DocumentOptions struct {
	*RootOptions
	File string
	ID   string
}

func (o *DocumentOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.File, "file", "f", "", "schedule document (.json, otherwise YAML)")
	cmd.Flags().StringVar(&o.ID, "id", "", "schedule id (overrides the document's id)")
	cmd.MarkFlagRequired("file")
}

// load parses the document and applies --id.
func (o *DocumentOptions) load(f *factory.ScheduleFactory) (schedule.Schedule, error) {
	desired, err := f.ParseFile(o.File)
	if err != nil {
		return schedule.Schedule{}, err
	}
	if o.ID != "" {
		desired.ID = o.ID
	}
	return desired, nil
}

func newPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the override operations a document would cause",
		Long: `Print the override operations a document would cause.

Nothing is written. The schedule must exist; its id comes from the document
or --id.

Example:
  server plan --file support.yaml --id 0190f5d2-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closeStore, err := opts.openHandler()
			if err != nil {
				return err
			}
			defer closeStore()

			desired, err := opts.load(h.Factory)
			if err != nil {
				return err
			}
			resp, err := h.Plan(cmd.Context(), desired)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	opts.bind(cmd)

	return cmd
}

func newApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update a schedule from a document",
		Long: `Create or update a schedule from a document.

A document without an id (and no --id) creates a new schedule. Otherwise the
stored schedule is reconciled with the document and the attempt is recorded
as an apply run, which the retry sweep of "serve --retry" picks up if it
failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closeStore, err := opts.openHandler()
			if err != nil {
				return err
			}
			defer closeStore()

			desired, err := opts.load(h.Factory)
			if err != nil {
				return err
			}

			if desired.ID == "" {
				created, err := h.Service.Create(cmd.Context(), desired)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h.Factory.ToDoc(*created))
			}

			resp, err := h.Apply(cmd.Context(), desired, "cli")
			if err != nil {
				if resp.RunID != "" {
					return fmt.Errorf("apply run %s: %w", resp.RunID, err)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	opts.bind(cmd)

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

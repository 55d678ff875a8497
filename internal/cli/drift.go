package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/coordinator"
)

// NewDriftCommand creates the drift command.
func NewDriftCommand(rootOpts *RootOptions) *cobra.Command {
	var resync bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare the local store with the engine",
		Long: `Compare groups, users and routes in the local store with what the engine
reports. Exits 1 when any difference is found.

With --resync, routes that are missing on the engine or whose compiled
form differs are pushed again before the comparison.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if resync {
					n, err := a.coord.ResyncRoutes(ctx)
					if err != nil {
						return err
					}
					out.VerboseLog("resynced %d routes", n)
				}
				report, err := a.coord.CheckDrift(ctx)
				if err != nil {
					return err
				}
				if report.InSync() {
					return out.Success(driftReport(report))
				}
				_ = out.Error(CodeDrift, fmt.Sprintf("%d differences found", len(report.Items)), report.Items)
				if out.Format != "json" {
					_ = driftReport(report).WriteText(out.Writer)
				}
				return NewExitError(ExitFailure, "drift detected")
			})
		},
	}
	cmd.Flags().BoolVar(&resync, "resync", false, "push differing routes before comparing")
	return cmd
}

type driftReport coordinator.DriftReport

func (r driftReport) WriteText(w io.Writer) error {
	if len(r.Items) == 0 {
		_, err := fmt.Fprintln(w, "in sync")
		return err
	}
	t := table{header: []string{"ENTITY", "KEY", "KIND", "DETAIL"}}
	for _, d := range r.Items {
		t.rows = append(t.rows, []string{d.Entity, d.Key, string(d.Kind), d.Detail})
	}
	return t.write(w)
}

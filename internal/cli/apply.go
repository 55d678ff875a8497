package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/manifest"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision everything described in a manifest",
		Long: `Apply a YAML manifest. The manifest is checked against the schema first;
nothing is applied when it does not match. Entities are then created in
dependency order: groups, users, connectors, filters, routes, interceptors.

Entities that already exist are skipped, so a manifest can be re-applied
after a failure. Apply stops at the first failure.`,
		Example: `  quark apply -f site.yaml
  quark apply -f site.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			m, err := manifest.Load(file)
			if err != nil {
				return out.Fail(err)
			}
			if dryRun {
				return out.Success(manifestSummary(*m))
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				res, err := m.Apply(ctx, a.coord, a.logger)
				if err != nil {
					out.VerboseLog("applied %d, skipped %d before the failure", res.Applied, res.Skipped)
					return err
				}
				return out.Success(applyResult(res))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the manifest without applying it")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type applyResult manifest.Result

func (r applyResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "applied %d, skipped %d\n", r.Applied, r.Skipped)
	return err
}

type manifestSummary manifest.Manifest

func (m manifestSummary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "manifest valid: %d groups, %d users, %d connectors, %d filters, %d routes, %d interceptors\n",
		len(m.Groups), len(m.Users), len(m.Connectors), len(m.Filters), len(m.Routes), len(m.Interceptors))
	return err
}

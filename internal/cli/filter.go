package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// NewFilterCommand creates the filter command tree.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage route and interceptor filters",
	}
	cmd.AddCommand(newFilterAddCommand(rootOpts))
	cmd.AddCommand(newKeyCommand(rootOpts, "remove <fid>", "Remove a filter no rule uses", "filter removed",
		(*coordinator.Coordinator).RemoveFilter))
	cmd.AddCommand(newFilterListCommand(rootOpts))
	return cmd
}

func newFilterAddCommand(rootOpts *RootOptions) *cobra.Command {
	var filterType, nature, value string

	cmd := &cobra.Command{
		Use:   "add <fid>",
		Short: "Create a filter",
		Long: `Create a filter. --value is the filter's single parameter: a connector id,
uid, gid, regular expression, "start;end" interval, tag number or script
path, depending on the type. TransparentFilter takes none.

Without --nature the filter applies to every direction its type supports.`,
		Example: `  quark filter add france --type DestinationAddrFilter --value '^33'
  quark filter add office-hours --type TimeIntervalFilter --value '08:00;18:00'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.Filter{FID: args[0], Type: jasmin.FilterType(filterType), Nature: model.FilterNature(nature)}
			if cmd.Flags().Changed("value") {
				f.Param = &model.FilterParam{Value: value}
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				created, err := a.coord.AddFilter(ctx, f)
				if err != nil {
					return err
				}
				return out.Success(filterList{created})
			})
		},
	}
	cmd.Flags().StringVarP(&filterType, "type", "t", "", "filter type, e.g. DestinationAddrFilter (required)")
	cmd.Flags().StringVar(&nature, "nature", "", "MT, MO or ALL")
	cmd.Flags().StringVar(&value, "value", "", "filter parameter")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFilterListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				filters, err := a.coord.ListFilters(ctx)
				if err != nil {
					return err
				}
				return out.Success(filterList(filters))
			})
		},
	}
}

type filterList []model.Filter

func (l filterList) WriteText(w io.Writer) error {
	t := table{header: []string{"FID", "TYPE", "NATURE", "PARAMETER"}}
	for _, f := range l {
		param := ""
		if f.Param != nil {
			param = fmt.Sprintf("%s=%v", f.Param.Key, f.Param.Value)
		}
		t.rows = append(t.rows, []string{f.FID, string(f.Type), string(f.Nature), param})
	}
	return t.write(w)
}

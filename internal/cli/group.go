package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// NewGroupCommand creates the group command tree.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage user groups",
	}
	cmd.AddCommand(newGroupAddCommand(rootOpts))
	cmd.AddCommand(newKeyCommand(rootOpts, "remove <gid>", "Remove a group with no users", "group removed",
		(*coordinator.Coordinator).RemoveGroup))
	cmd.AddCommand(newKeyCommand(rootOpts, "enable <gid>", "Enable a group", "group enabled",
		(*coordinator.Coordinator).EnableGroup))
	cmd.AddCommand(newKeyCommand(rootOpts, "disable <gid>", "Disable a group", "group disabled",
		(*coordinator.Coordinator).DisableGroup))
	cmd.AddCommand(newGroupListCommand(rootOpts))
	return cmd
}

func newGroupAddCommand(rootOpts *RootOptions) *cobra.Command {
	var description string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add <gid>",
		Short: "Create a group",
		Example: `  quark group add customers --description "paying customers"
  quark group add trial --disabled`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				g, err := a.coord.AddGroup(ctx, model.Group{GID: args[0], Description: description, Enabled: !disabled})
				if err != nil {
					return err
				}
				return out.Success(groupList{g})
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the group disabled")
	return cmd
}

func newGroupListCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Long: `List groups from the local store, or with --remote as the engine reports
them. When the engine cannot be reached the last snapshot is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if remote {
					l := a.coord.GetAllGroups(ctx)
					if l.Err != nil {
						out.VerboseLog("engine read failed: %v", l.Err)
					}
					return out.Success(remoteGroups(l))
				}
				groups, err := a.coord.ListGroups(ctx)
				if err != nil {
					return err
				}
				return out.Success(groupList(groups))
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "read from the engine")
	return cmd
}

// newKeyCommand builds a command that runs one coordinator operation on a
// single natural key.
func newKeyCommand(rootOpts *RootOptions, use, short, done string, op func(*coordinator.Coordinator, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if err := op(a.coord, ctx, args[0]); err != nil {
					return err
				}
				return out.Success(message(fmt.Sprintf("%s: %s", done, args[0])))
			})
		},
	}
}

// message is a one-line result.
type message string

func (m message) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, string(m))
	return err
}

type groupList []model.Group

func (l groupList) WriteText(w io.Writer) error {
	t := table{header: []string{"GID", "ENABLED", "DESCRIPTION"}}
	for _, g := range l {
		t.rows = append(t.rows, []string{g.GID, strconv.FormatBool(g.Enabled), g.Description})
	}
	return t.write(w)
}

type remoteGroups coordinator.Listing[jasmin.Group]

func (l remoteGroups) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "source: %s\n", l.Source)
	t := table{header: []string{"GID", "ENABLED"}}
	for _, g := range l.Items {
		t.rows = append(t.rows, []string{g.GID, strconv.FormatBool(g.Enabled)})
	}
	return t.write(w)
}

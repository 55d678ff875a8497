package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// ruleFlags address one rule of a routing or interception table.
type ruleFlags struct {
	nature string
	order  int
}

func (f *ruleFlags) bind(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVarP(&f.nature, "nature", "n", "MT", "MT or MO")
	cmd.Flags().IntVarP(&f.order, "order", "o", 0, "position in the table; higher orders are evaluated first")
	if required {
		_ = cmd.MarkFlagRequired("order")
	}
}

func (f *ruleFlags) parseNature() (jasmin.Nature, error) {
	n, err := jasmin.ParseNature(strings.ToUpper(f.nature))
	if err != nil {
		return "", WrapExitError(ExitFailure, "invalid nature", err)
	}
	return n, nil
}

// NewRouteCommand creates the route command tree.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Manage MT and MO routes",
	}
	cmd.AddCommand(newRouteAddCommand(rootOpts))
	cmd.AddCommand(newRuleRemoveCommand(rootOpts, "route", (*coordinator.Coordinator).RemoveRoute))
	cmd.AddCommand(newRouteListCommand(rootOpts))
	return cmd
}

func newRouteAddCommand(rootOpts *RootOptions) *cobra.Command {
	var rf ruleFlags
	var kind string
	var rate float64
	var connectors, filters []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Install a route",
		Long: `Install a route at a free order. Default and Static routes use a single
connector; RandomRoundrobin and Failover routes take several, in priority
order. MT routes go to SMPP connectors and MO routes to HTTP connectors.`,
		Example: `  quark route add --nature MT --order 0 --kind Default --connector smppc_orange
  quark route add --order 10 --kind Static --connector smppc_orange --filter france --rate 0.02
  quark route add --order 20 --kind Failover --connector smppc_orange --connector smppc_sfr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rf.parseNature()
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			req := coordinator.RouteRequest{
				Order:      rf.order,
				Nature:     n,
				Kind:       jasmin.RouteKind(kind),
				Connectors: connectors,
				Filters:    filters,
			}
			if cmd.Flags().Changed("rate") {
				req.Rate = &rate
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				r, err := a.coord.AddRoute(ctx, req)
				if err != nil {
					return err
				}
				return out.Success(routeList{r})
			})
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().StringVarP(&kind, "kind", "k", "Static", "Default, Static, RandomRoundrobin or Failover")
	cmd.Flags().Float64Var(&rate, "rate", 0, "MT billing rate per message")
	cmd.Flags().StringArrayVar(&connectors, "connector", nil, "connector cid, repeatable (required)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter fid, repeatable")
	_ = cmd.MarkFlagRequired("connector")
	return cmd
}

// newRuleRemoveCommand removes the rule at --nature/--order.
func newRuleRemoveCommand(rootOpts *RootOptions, what string, op func(*coordinator.Coordinator, context.Context, jasmin.Nature, int) error) *cobra.Command {
	var rf ruleFlags

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the " + what + " at an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rf.parseNature()
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if err := op(a.coord, ctx, n, rf.order); err != nil {
					return err
				}
				return out.Success(message(fmt.Sprintf("%s removed: %s %d", what, n, rf.order)))
			})
		},
	}
	rf.bind(cmd, true)
	return cmd
}

// natureFilter parses an optional --nature for listings.
func natureFilter(s string) (jasmin.Nature, error) {
	if s == "" {
		return "", nil
	}
	n, err := jasmin.ParseNature(strings.ToUpper(s))
	if err != nil {
		return "", WrapExitError(ExitFailure, "invalid nature", err)
	}
	return n, nil
}

func newRouteListCommand(rootOpts *RootOptions) *cobra.Command {
	var nature string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local routes in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := natureFilter(nature)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				routes, err := a.coord.ListRoutes(ctx, n)
				if err != nil {
					return err
				}
				return out.Success(routeList(routes))
			})
		},
	}
	cmd.Flags().StringVarP(&nature, "nature", "n", "", "MT or MO (default both)")
	return cmd
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

type routeList []model.Route

func (l routeList) WriteText(w io.Writer) error {
	t := table{header: []string{"NATURE", "ORDER", "KIND", "RATE", "CONNECTORS", "FILTERS"}}
	for _, r := range l {
		rate := ""
		if r.Rate != nil {
			rate = strconv.FormatFloat(*r.Rate, 'f', -1, 64)
		}
		t.rows = append(t.rows, []string{string(r.Nature), strconv.Itoa(r.Order), string(r.Kind), rate,
			joinIDs(r.ConnectorIDs), joinIDs(r.FilterIDs)})
	}
	return t.write(w)
}

// NewInterceptorCommand creates the interceptor command tree.
func NewInterceptorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interceptor",
		Short: "Manage MT and MO interceptors",
	}
	cmd.AddCommand(newInterceptorAddCommand(rootOpts))
	cmd.AddCommand(newRuleRemoveCommand(rootOpts, "interceptor", (*coordinator.Coordinator).RemoveInterceptor))
	cmd.AddCommand(newInterceptorListCommand(rootOpts))
	return cmd
}

func newInterceptorAddCommand(rootOpts *RootOptions) *cobra.Command {
	var rf ruleFlags
	var kind, script string
	var filters []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Install an interceptor",
		Example: `  quark interceptor add --nature MT --order 5 --kind Static --script ./tag.py --filter france`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rf.parseNature()
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			req := coordinator.InterceptorRequest{
				Order:   rf.order,
				Nature:  n,
				Kind:    jasmin.InterceptorKind(kind),
				Script:  script,
				Filters: filters,
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				i, err := a.coord.AddInterceptor(ctx, req)
				if err != nil {
					return err
				}
				return out.Success(interceptorList{i})
			})
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().StringVarP(&kind, "kind", "k", "Static", "Default or Static")
	cmd.Flags().StringVarP(&script, "script", "s", "", "path of the interceptor script (required)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter fid, repeatable")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func newInterceptorListCommand(rootOpts *RootOptions) *cobra.Command {
	var nature string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local interceptors in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := natureFilter(nature)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				list, err := a.coord.ListInterceptors(ctx, n)
				if err != nil {
					return err
				}
				return out.Success(interceptorList(list))
			})
		},
	}
	cmd.Flags().StringVarP(&nature, "nature", "n", "", "MT or MO (default both)")
	return cmd
}

type interceptorList []model.Interceptor

func (l interceptorList) WriteText(w io.Writer) error {
	t := table{header: []string{"NATURE", "ORDER", "KIND", "SCRIPT", "FILTERS"}}
	for _, i := range l {
		t.rows = append(t.rows, []string{string(i.Nature), strconv.Itoa(i.Order), string(i.Kind), i.Script, joinIDs(i.FilterIDs)})
	}
	return t.write(w)
}

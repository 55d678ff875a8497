package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// NewConnectorCommand creates the connector command tree.
func NewConnectorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connector",
		Short: "Manage SMPP and HTTP connectors",
	}
	cmd.AddCommand(newConnectorAddCommand(rootOpts))
	cmd.AddCommand(newKeyCommand(rootOpts, "start <cid>", "Start an SMPP connector", "connector started",
		(*coordinator.Coordinator).StartConnector))
	cmd.AddCommand(newKeyCommand(rootOpts, "stop <cid>", "Stop an SMPP connector", "connector stopped",
		(*coordinator.Coordinator).StopConnector))
	cmd.AddCommand(newKeyCommand(rootOpts, "remove <cid>", "Remove a stopped connector no route uses", "connector removed",
		(*coordinator.Coordinator).RemoveConnector))
	cmd.AddCommand(newConnectorStatusCommand(rootOpts))
	cmd.AddCommand(newConnectorListCommand(rootOpts))
	return cmd
}

// smppFlags are the SMPP settings exposed as flags. Unset ones keep the
// engine defaults.
type smppFlags struct {
	host, username, password, systemType, bind, sourceAddr string
	port                                                   int
	throughput                                             float64
	logLevel                                               int
}

func newConnectorAddCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string
	var sf smppFlags
	var url, method string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a connector",
		Long: `Create a stopped connector. The cid is derived from the name: smppc_<name>
for SMPP connectors and http_<name> for HTTP connectors.

SMPP connectors are registered with the engine's client manager. HTTP
connectors only live in the local store until a route uses them.`,
		Example: `  quark connector add orange --type smpp --host smsc.example.net --port 2776 --username acme --password pass
  quark connector add crm --type http --url https://crm.example.net/mo --method POST`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := model.ConnectorType(strings.ToUpper(kind))
			conn := model.Connector{CID: model.ConnectorCID(t, args[0]), Type: t}
			switch t {
			case model.ConnectorSMPP:
				s := model.DefaultSMPPSettings()
				flags := cmd.Flags()
				if flags.Changed("host") {
					s.Host = sf.host
				}
				if flags.Changed("port") {
					s.Port = sf.port
				}
				if flags.Changed("username") {
					s.Username = sf.username
				}
				if flags.Changed("password") {
					s.Password = sf.password
				}
				if flags.Changed("system-type") {
					s.SystemType = sf.systemType
				}
				if flags.Changed("bind") {
					s.Bind = sf.bind
				}
				if flags.Changed("source-addr") {
					s.SourceAddr = sf.sourceAddr
				}
				if flags.Changed("throughput") {
					s.SubmitThroughput = sf.throughput
				}
				if flags.Changed("log-level") {
					s.LogLevel = sf.logLevel
				}
				conn.SMPP = &s
			case model.ConnectorHTTP:
				conn.HTTP = &model.HTTPSettings{BaseURL: url, Method: strings.ToUpper(method)}
			default:
				return rootOpts.formatter(cmd).Fail(
					WrapExitError(ExitFailure, "invalid connector type", fmt.Errorf("%q is not smpp or http", kind)))
			}

			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				created, err := a.coord.AddConnector(ctx, conn)
				if err != nil {
					return err
				}
				return out.Success(connectorList{created})
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&kind, "type", "t", "smpp", "connector type (smpp|http)")
	flags.StringVar(&sf.host, "host", "", "SMSC host")
	flags.IntVar(&sf.port, "port", 0, "SMSC port")
	flags.StringVar(&sf.username, "username", "", "bind username")
	flags.StringVar(&sf.password, "password", "", "bind password")
	flags.StringVar(&sf.systemType, "system-type", "", "bind system_type")
	flags.StringVar(&sf.bind, "bind", "", "bind mode (transceiver|transmitter|receiver)")
	flags.StringVar(&sf.sourceAddr, "source-addr", "", "default source address")
	flags.Float64Var(&sf.throughput, "throughput", 0, "submit throughput in messages per second, 0 for unlimited")
	flags.IntVar(&sf.logLevel, "log-level", 0, "connector log level (10|20|30|40|50)")
	flags.StringVar(&url, "url", "", "HTTP connector base URL")
	flags.StringVar(&method, "method", "GET", "HTTP connector method (GET|POST)")
	return cmd
}

// connectorStatus is the live view of one connector.
type connectorStatus struct {
	Status  jasmin.ConnectorStatus `json:"status"`
	Details map[string]any         `json:"details,omitempty"`
}

func (s connectorStatus) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "cid:      %s\nstarted:  %t\nsession:  %s\n", s.Status.CID, s.Status.Started, s.Status.SessionState)
	if len(s.Details) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Details))
	for k := range s.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := table{header: []string{"SETTING", "VALUE"}}
	for _, k := range keys {
		t.rows = append(t.rows, []string{k, fmt.Sprint(s.Details[k])})
	}
	return t.write(w)
}

func newConnectorStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "status <cid>",
		Short: "Show the live state of an SMPP connector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				status, err := a.coord.GetConnectorStatus(ctx, args[0])
				if err != nil {
					return err
				}
				res := connectorStatus{Status: status}
				if details {
					if res.Details, err = a.coord.GetConnectorDetails(ctx, args[0]); err != nil {
						return err
					}
				}
				return out.Success(res)
			})
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "include the engine's view of the configuration")
	return cmd
}

func newConnectorListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local connectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				conns, err := a.coord.ListConnectors(ctx)
				if err != nil {
					return err
				}
				return out.Success(connectorList(conns))
			})
		},
	}
}

type connectorList []model.Connector

func (l connectorList) WriteText(w io.Writer) error {
	t := table{header: []string{"CID", "TYPE", "STARTED", "TARGET"}}
	for _, c := range l {
		target := ""
		switch {
		case c.SMPP != nil:
			target = c.SMPP.Host + ":" + strconv.Itoa(c.SMPP.Port)
		case c.HTTP != nil:
			target = c.HTTP.Method + " " + c.HTTP.BaseURL
		}
		t.rows = append(t.rows, []string{c.CID, string(c.Type), strconv.FormatBool(c.Started), target})
	}
	return t.write(w)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/audit"
	"github.com/roach88/quark/internal/store"
)

// NewAuditCommand creates the audit command tree.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the operation journal",
	}
	cmd.AddCommand(newAuditLogCommand(rootOpts))
	cmd.AddCommand(newAuditTailCommand(rootOpts))
	return cmd
}

func newAuditLogCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	var opID string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show journaled state transitions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				var ops []store.Operation
				var err error
				if opID != "" {
					ops, err = a.store.OperationHistory(ctx, opID)
				} else {
					ops, err = a.store.RecentOperations(ctx, limit)
				}
				if err != nil {
					return err
				}
				return out.Success(operationList(ops))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of transitions to show")
	cmd.Flags().StringVar(&opID, "op", "", "show every transition of one operation id")
	return cmd
}

type operationList []store.Operation

func (l operationList) WriteText(w io.Writer) error {
	t := table{header: []string{"TIME", "OP ID", "OP", "KEY", "STATE", "DETAIL"}}
	for _, o := range l {
		t.rows = append(t.rows, []string{o.CreatedAt.Format(time.RFC3339), o.OpID, o.Op, o.Key, o.State, o.Detail})
	}
	return t.write(w)
}

func newAuditTailCommand(rootOpts *RootOptions) *cobra.Command {
	var brokers, topic, groupID string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow state transitions published to kafka",
		Long: `Follow the audit topic and print each transition as it arrives, as one
JSON object per line with --format json. Brokers and topic default to the
audit section of the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			cfg, err := rootOpts.loadConfig(out)
			if err != nil {
				return err
			}
			tc := audit.TailConfig{Brokers: cfg.Audit.KafkaBrokers, Topic: cfg.Audit.Topic, GroupID: groupID}
			if brokers != "" {
				tc.Brokers = audit.SplitBrokers(brokers)
			}
			if topic != "" {
				tc.Topic = topic
			}
			if len(tc.Brokers) == 0 {
				return out.Fail(NewExitError(ExitCommandError, "no kafka brokers configured"))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(out.Writer)
			err = audit.Tail(ctx, tc, func(e audit.Event) error {
				if out.Format == "json" {
					return enc.Encode(e)
				}
				_, err := fmt.Fprintf(out.Writer, "%s %s %s %s %s %s\n",
					e.At.Format(time.RFC3339), e.OpID, e.Op, e.Key, e.State, e.Detail)
				return err
			})
			if err != nil {
				return out.Fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "", "comma-separated kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", "", "audit topic")
	cmd.Flags().StringVar(&groupID, "group-id", "", "consumer group; empty reads without committing offsets")
	return cmd
}

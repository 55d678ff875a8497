package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/pb"
	"github.com/roach88/quark/internal/testutil"
)

// NewMockEngineCommand creates the mock-engine command.
func NewMockEngineCommand(rootOpts *RootOptions) *cobra.Command {
	var listen, username, password string

	cmd := &cobra.Command{
		Use:   "mock-engine",
		Short: "Serve an in-memory engine for local testing",
		Long: `Serve an in-memory engine that speaks the control protocol on one address.
Point both the router and smpp endpoints of the config at it. State is lost
when the process exits.`,
		Example: `  quark mock-engine --listen 127.0.0.1:8988 --username radmin --password rpwd`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if rootOpts.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			fake := testutil.NewFakeEngine()
			fake.Username, fake.Password = username, password
			srv := pb.NewServer(fake.Authenticate, logger)
			fake.Register(srv)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("mock engine listening", "addr", listen)
			err := srv.ListenAndServe(ctx, listen)
			if err != nil && !errors.Is(err, context.Canceled) {
				return rootOpts.formatter(cmd).Fail(err)
			}
			logger.Info("mock engine stopped", "calls", len(fake.Calls()), "persists", fake.Persists())
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8988", "address to listen on")
	cmd.Flags().StringVar(&username, "username", "", "required login username (any login when empty)")
	cmd.Flags().StringVar(&password, "password", "", "required login password")
	return cmd
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// Config is the config file. Empty falls back to $QUARK_CONFIG, then
	// to the defaults.
	Config string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the quark CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "quark",
		Short: "quark - configuration bridge for the Jasmin SMS gateway",
		Long: `quark keeps a local record of Jasmin groups, users, connectors, filters,
routes and interceptors, and pushes every change to the running gateway over
its PB control interfaces. A change that the gateway rejects is rolled back
locally; a rollback that fails is reported as divergence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default $"+config.EnvConfig+")")

	// Add subcommands
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewConnectorCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewInterceptorCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewDriftCommand(opts))
	cmd.AddCommand(NewMockEngineCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig loads and validates the configuration, reporting failures.
func (o *RootOptions) loadConfig(out *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		_ = out.Error(CodeCommand, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// runFunc is the body of a command that works on the store and engine.
type runFunc func(ctx context.Context, a *app, out *OutputFormatter) error

// run opens the app for the duration of fn. Errors from fn are reported
// through the formatter unless fn already returned an *ExitError.
func (o *RootOptions) run(cmd *cobra.Command, fn runFunc) error {
	out := o.formatter(cmd)
	cfg, err := o.loadConfig(out)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, o.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return out.Fail(err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return out.Fail(err)
	}
	defer a.close()

	if err := fn(ctx, a, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return out.Fail(err)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// NewUserCommand creates the user command tree.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	cmd.AddCommand(newKeyCommand(rootOpts, "remove <username>", "Remove a user", "user removed",
		(*coordinator.Coordinator).RemoveUser))
	cmd.AddCommand(newKeyCommand(rootOpts, "enable <username>", "Enable a user", "user enabled",
		(*coordinator.Coordinator).EnableUser))
	cmd.AddCommand(newKeyCommand(rootOpts, "disable <username>", "Disable a user", "user disabled",
		(*coordinator.Coordinator).DisableUser))
	cmd.AddCommand(newUserPasswdCommand(rootOpts))
	cmd.AddCommand(newUserCredentialsCommand(rootOpts))
	cmd.AddCommand(newUserListCommand(rootOpts))
	return cmd
}

// credentialFile is the YAML layout of --credentials files.
type credentialFile struct {
	MTCredential   *model.CredentialBundle `yaml:"mt_credential"`
	SMPPCredential *model.CredentialBundle `yaml:"smpps_credential"`
}

func readCredentialFile(path string) (credentialFile, error) {
	var f credentialFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var group, password, credentials string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user in a group",
		Long: `Create a user in an existing group. Without --password the password is
read from the terminal, or from the first line of stdin.

--credentials names a YAML file with mt_credential and smpps_credential
sections; missing sections get the engine defaults.`,
		Example: `  quark user add acme --group customers
  echo s3cret | quark user add acme --group customers --credentials acme.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := model.User{Username: args[0], GID: group, Enabled: !disabled, Password: password}
			if credentials != "" {
				f, err := readCredentialFile(credentials)
				if err != nil {
					return rootOpts.formatter(cmd).Fail(err)
				}
				if f.MTCredential != nil {
					u.MTCredential = *f.MTCredential
				}
				if f.SMPPCredential != nil {
					u.SMPPCredential = *f.SMPPCredential
				}
			}
			if u.Password == "" {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
				if err != nil {
					return rootOpts.formatter(cmd).Fail(err)
				}
				u.Password = p
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				created, err := a.coord.AddUser(ctx, u)
				if err != nil {
					return err
				}
				return out.Success(userList{created})
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "gid of the owning group (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "YAML file with credential bundles")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the user disabled")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func newUserPasswdCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "New password")
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if _, err := a.coord.UpdateUserCredentials(ctx, args[0], coordinator.CredentialUpdate{Password: &p}); err != nil {
					return err
				}
				return out.Success(message("password changed: " + args[0]))
			})
		},
	}
}

func newUserCredentialsCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "credentials <username>",
		Short: "Replace a user's credential bundles",
		Long: `Replace the credential bundles present in the file. Quotas are sent as
updates to the running balances.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readCredentialFile(file)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				u, err := a.coord.UpdateUserCredentials(ctx, args[0], coordinator.CredentialUpdate{
					MTCredential:   f.MTCredential,
					SMPPCredential: f.SMPPCredential,
				})
				if err != nil {
					return err
				}
				return out.Success(userList{u})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with credential bundles (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUserListCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if remote {
					l := a.coord.GetAllUsers(ctx)
					if l.Err != nil {
						out.VerboseLog("engine read failed: %v", l.Err)
					}
					return out.Success(remoteUsers(l))
				}
				users, err := a.coord.ListUsers(ctx)
				if err != nil {
					return err
				}
				return out.Success(userList(users))
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "read from the engine")
	return cmd
}

type userList []model.User

func (l userList) WriteText(w io.Writer) error {
	t := table{header: []string{"USERNAME", "GID", "ENABLED"}}
	for _, u := range l {
		t.rows = append(t.rows, []string{u.Username, u.GID, strconv.FormatBool(u.Enabled)})
	}
	return t.write(w)
}

type remoteUsers coordinator.Listing[jasmin.User]

func (l remoteUsers) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "source: %s\n", l.Source)
	t := table{header: []string{"UID", "GID", "ENABLED"}}
	for _, u := range l.Items {
		t.rows = append(t.rows, []string{u.UID, u.GID, strconv.FormatBool(u.Enabled)})
	}
	return t.write(w)
}

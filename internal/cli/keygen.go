package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/quark/internal/sealed"
)

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <identity-file>",
		Short: "Create an identity for sealing stored passwords",
		Long: `Write a new age identity to the given path with mode 0600. Set
sealing.identity_file in the config to it; passwords stored afterwards are
encrypted. Existing files are never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			recipient, err := sealed.GenerateIdentityFile(args[0])
			if err != nil {
				return out.Fail(err)
			}
			return out.Success(keygenResult{Path: args[0], Recipient: recipient})
		},
	}
}

type keygenResult struct {
	Path      string `json:"path"`
	Recipient string `json:"recipient"`
}

func (k keygenResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "identity written to %s\npublic key: %s\n", k.Path, k.Recipient)
	return err
}

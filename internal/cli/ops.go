package cli

import (
	"github.com/spf13/cobra"

	"aerodb/internal/ops"
)

// NewOpsCommand lists the operations and their arguments. Required
// arguments are starred.
func NewOpsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the available operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPrinter(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return p.Print(ops.NewRegistry(ops.Deps{}).Describe())
		},
	}
}

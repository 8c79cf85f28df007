package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"aerodb/internal/serverapp"
)

// InitSchemaOptions holds flags for the init-schema command.
type InitSchemaOptions struct {
	*RootOptions
	View   bool
	DryRun bool
}

// NewInitSchemaCommand creates the registered tables in an empty database.
func NewInitSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitSchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-schema",
		Short: "Create the aerodb tables for development and tests",
		Long: `Create every registered table that does not exist yet.

With --view, also create projects_with_stands, which presents join-table
membership in the STAND_PERSISTENT_IDS shape. This is not a migration tool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitSchema(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.View, "view", false, "also create the join-table compatibility view")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the statements without running them")
	return cmd
}

func runInitSchema(cmd *cobra.Command, opts *InitSchemaOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	stmts, err := serverapp.SchemaStatements(cfg, serverapp.NewSchemaRegistry(cfg, logger.Logger), opts.View)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.DryRun {
		for _, stmt := range stmts {
			if _, err := fmt.Fprintf(out, "%s;\n", stmt); err != nil {
				return err
			}
		}
		return nil
	}

	ctx := cmd.Context()
	db, err := serverapp.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	_, err = fmt.Fprintf(out, "applied %d statements\n", len(stmts))
	return err
}

// Package cli implements aeroctl, which runs aerodb operations and schema
// tasks directly against the configured database.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"aerodb/internal/config"
	"aerodb/internal/logging"
	"aerodb/internal/render"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
	NoColor bool
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{render.FormatTable, render.FormatJSON}

// NewRootCommand creates the aeroctl command tree. version is printed by
// the version command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "aeroctl",
		Short: "Query and administer an aerodb database",
		Long: `aeroctl runs the aerodb operations locally against the configured
database and prints the results as tables or JSON.

Configuration is read from aerodb.yaml, AERODB_* environment variables, and
the flags below, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	config.DefineFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log progress to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", render.FormatTable, "output format (table|json)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewInitSchemaCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the aeroctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "aeroctl %s\n", version)
			return err
		},
	})

	return cmd
}

// loadConfig resolves and validates configuration from the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if result := cfg.Validate(); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %s", result.Error())
	}
	return cfg, nil
}

// newLogger logs to stderr; quiet below warn unless --verbose.
func newLogger(opts *RootOptions, w io.Writer) *logging.Logger {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.Config{Level: level, Format: "text", Output: w})
}

func newPrinter(opts *RootOptions, w io.Writer) (*render.Printer, error) {
	return render.New(w, render.Options{
		Format: opts.Format,
		Color:  !opts.NoColor && !color.NoColor,
	})
}

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"aerodb/internal/serverapp"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args string
}

// NewCallCommand runs one operation against the database.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <operation> [key=value...]",
		Short: "Run an operation and print its result",
		Long: `Run an operation and print its result.

Arguments are given as key=value pairs or as one JSON object with --args.
A value that opens with [ or { is parsed as JSON; comma-delimited key lists
are accepted where an operation takes ids.

Examples:
  aeroctl call full_stand_data stand_ids=1000001,1000002
  aeroctl call where entity=stands clauses='[{"kind":"EQUAL","column":"CLIENT_ID","value":1}]'
  aeroctl call add_client --args '{"name":"Acme","category":"forestry"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&opts.Args, "args", "", "operation arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, opts *CallOptions, name string, pairs []string) error {
	callArgs, err := parseCallArgs(opts.Args, pairs)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	printer, err := newPrinter(opts.RootOptions, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	db, err := serverapp.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	registry, publisher, err := serverapp.BuildRegistry(ctx, cfg, db, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", slog.String("error", err.Error()))
		}
	}()

	result, err := registry.Call(ctx, name, callArgs)
	if err != nil {
		return err
	}
	return printer.Print(result)
}

// parseCallArgs merges the --args object with key=value pairs; pairs win.
func parseCallArgs(raw string, pairs []string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("invalid --args JSON: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", pair)
		}
		trimmed := strings.TrimSpace(value)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			dec := json.NewDecoder(strings.NewReader(trimmed))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("argument %s: invalid JSON: %w", key, err)
			}
			args[key] = v
			continue
		}
		args[key] = value
	}
	return args, nil
}

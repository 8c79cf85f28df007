package naming

import (
	"log/slog"
	"strings"
)

// NameSuffix is appended to the singular, upper-cased table name to form
// the display-name column.
const NameSuffix = "_NAME"

// Namer derives column names from table names.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PluralOverrides == nil {
		cfg.PluralOverrides = map[string]string{}
	}
	if cfg.SingularOverrides == nil {
		cfg.SingularOverrides = map[string]string{}
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// NameColumn returns the display-name column for a table.
// Example: "clients" -> "CLIENT_NAME", "flight_files" -> "FLIGHT_FILE_NAME"
func (n *Namer) NameColumn(table string) string {
	singular := n.Singularize(strings.ToLower(table))
	if singular == "" {
		n.logger.Warn("cannot derive name column for empty table name")
		return ""
	}
	return strings.ToUpper(singular) + NameSuffix
}

// KeyColumn returns the conventional key column for a table.
// Example: "projects" -> "PROJECT_ID"
func (n *Namer) KeyColumn(table string) string {
	singular := n.Singularize(strings.ToLower(table))
	if singular == "" {
		return ""
	}
	return strings.ToUpper(singular) + "_ID"
}

// Package naming provides centralized naming logic for deriving column names
// from table names, including singularization and per-word overrides.
package naming

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"stand": "stands", "analysis": "analyses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"flight_ai": "flight_ai", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
	}
}

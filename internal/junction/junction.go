// Package junction resolves which stands belong to which projects. Membership
// is stored either as a delimited key list on the project row or as rows of a
// project_stands join table; both strategies present the same project rows.
package junction

import (
	"context"
	"fmt"
	"strings"

	"aerodb/internal/gateway"
	"aerodb/internal/rowset"
)

// Strategy selects how membership is stored.
type Strategy int

const (
	// Delimited reads the comma-delimited STAND_PERSISTENT_IDS column.
	Delimited Strategy = iota
	// JoinTable reads the project_stands table.
	JoinTable
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case Delimited:
		return "delimited"
	case JoinTable:
		return "join_table"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a configuration value onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "delimited":
		return Delimited, nil
	case "join_table", "join-table", "jointable":
		return JoinTable, nil
	default:
		return 0, fmt.Errorf("unknown stand membership strategy %q", name)
	}
}

// Membership answers project <-> stand questions against one gateway.
type Membership interface {
	// ProjectsContaining returns every project whose member list holds standID
	// as a whole token.
	ProjectsContaining(ctx context.Context, gw *gateway.Gateway, standID any) ([]*rowset.Row, error)
	// StandIDs returns the member stand keys of each project, keyed by the
	// project's key token, in stored order.
	StandIDs(ctx context.Context, gw *gateway.Gateway, projects []*rowset.Row) (map[string][]any, error)
}

// New returns the Membership for s.
func New(s Strategy) Membership {
	if s == JoinTable {
		return joinTable{}
	}
	return delimited{}
}

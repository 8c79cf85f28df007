// Package probe reports where imagery for a stand lives and whether those
// locations hold files.
package probe

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Location describes one imagery directory for a stand.
type Location struct {
	Directory string `json:"directory"`
	Exists    bool   `json:"exists"`
	HasFiles  bool   `json:"has_files"`
}

// Prober looks up the imagery locations of one stand.
type Prober interface {
	Probe(ctx context.Context, clientID, projectID, standTempID string) ([]Location, error)
}

// DefaultKinds are the imagery subdirectories checked under each stand.
var DefaultKinds = []string{"raw", "orthomosaic"}

// Layout maps a stand onto its imagery directories:
// <root>/<client>/<project>/<stand temp id>/<kind>.
type Layout struct {
	Root  string
	Kinds []string
}

// Directories returns the directories to probe, one per kind.
func (l Layout) Directories(clientID, projectID, standTempID string) ([]string, error) {
	for name, part := range map[string]string{"client": clientID, "project": projectID, "stand": standTempID} {
		if part == "" {
			return nil, fmt.Errorf("probe: %s id is required", name)
		}
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return nil, fmt.Errorf("probe: invalid %s id %q", name, part)
		}
	}
	kinds := l.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = path.Join(l.Root, clientID, projectID, standTempID, k)
	}
	return out, nil
}

// Noop reports no locations.
type Noop struct{}

func (Noop) Probe(context.Context, string, string, string) ([]Location, error) {
	return nil, nil
}

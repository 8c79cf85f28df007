package probe

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Filesystem probes directories on a local or mounted filesystem.
type Filesystem struct {
	layout Layout
}

// NewFilesystem returns a prober rooted at root.
func NewFilesystem(root string, kinds []string) *Filesystem {
	return &Filesystem{layout: Layout{Root: root, Kinds: kinds}}
}

func (f *Filesystem) Probe(ctx context.Context, clientID, projectID, standTempID string) ([]Location, error) {
	dirs, err := f.layout.Directories(clientID, projectID, standTempID)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := probeDir(filepath.FromSlash(dir))
		if err != nil {
			return nil, err
		}
		loc.Directory = dir
		out = append(out, loc)
	}
	return out, nil
}

func probeDir(dir string) (Location, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Location{}, nil
	}
	if err != nil {
		return Location{}, err
	}
	if !info.IsDir() {
		return Location{}, nil
	}

	d, err := os.Open(dir)
	if err != nil {
		return Location{}, err
	}
	defer d.Close()

	loc := Location{Exists: true}
	for {
		entries, err := d.ReadDir(64)
		for _, e := range entries {
			if !e.IsDir() {
				loc.HasFiles = true
				return loc, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return loc, nil
		}
		if err != nil {
			return Location{}, err
		}
	}
}

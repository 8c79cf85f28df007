package denorm

import (
	"context"
	"fmt"
	"log/slog"

	"aerodb/internal/probe"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
	"aerodb/internal/view"
)

// Imagery row columns.
const (
	DirectoryColumn = "DIRECTORY"
	ExistsColumn    = "EXISTS"
	HasFilesColumn  = "HAS_FILES"
)

// StandImagery probes the imagery locations of each stand and groups them
// under the stand key. Stands with no client or project cannot be located
// and get an empty group.
func (s *Service) StandImagery(ctx context.Context, ids resolve.IDs, prober probe.Prober) (*Result, error) {
	if prober == nil {
		prober = probe.Noop{}
	}
	full, err := s.FullStandData(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make([][]*rowset.Row, len(full.Rows))
	err = s.fanOut(ctx, len(full.Rows), func(ctx context.Context, i int) error {
		r := full.Rows[i]
		standID := r.Value(schema.StandPersistentID)
		client, project, temp := r.Value(schema.ClientID), r.Value(schema.ProjectID), r.Value(schema.StandTempID)
		if client == nil || project == nil || temp == nil {
			s.logger.DebugContext(ctx, "stand cannot be located for imagery", slog.Any("stand", standID))
			return nil
		}
		locs, err := prober.Probe(ctx, setutil.Token(client), setutil.Token(project), setutil.Token(temp))
		if err != nil {
			return fmt.Errorf("probe stand %v: %w", standID, err)
		}
		rows := make([]*rowset.Row, len(locs))
		for j, l := range locs {
			rows[j] = rowset.FromColumns(
				[]string{schema.StandPersistentID, DirectoryColumn, ExistsColumn, HasFilesColumn},
				[]any{standID, l.Directory, l.Exists, l.HasFiles},
			)
		}
		found[i] = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := view.New(schema.StandPersistentID)
	for i, r := range full.Rows {
		v.Append(r.Value(schema.StandPersistentID), found[i]...)
	}
	return &Result{View: v, Missing: full.Missing, Absent: full.Absent}, nil
}

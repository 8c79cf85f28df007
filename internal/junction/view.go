package junction

import (
	"fmt"
	"strings"

	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
)

// CompatibilityViewName is the view that presents join-table membership in
// the delimited-list shape for readers that still expect it.
const CompatibilityViewName = "projects_with_stands"

// CompatibilityViewDDL returns a CREATE VIEW statement joining projects with
// project_stands and folding members into STAND_PERSISTENT_IDS.
func CompatibilityViewDDL(reg *schema.Registry, d sqlutil.Dialect) (string, error) {
	cols, err := reg.Columns(schema.Projects)
	if err != nil {
		return "", err
	}
	selectCols := make([]string, 0, len(cols))
	groupCols := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == schema.StandList {
			continue
		}
		qualified := "p." + d.Quote(c)
		selectCols = append(selectCols, qualified)
		groupCols = append(groupCols, qualified)
	}
	selectCols = append(selectCols, fmt.Sprintf("%s AS %s",
		d.AggregateList("ps."+d.Quote(schema.StandPersistentID)), d.Quote(schema.StandList)))

	return fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM %s p LEFT JOIN %s ps ON ps.%s = p.%s GROUP BY %s",
		d.Quote(CompatibilityViewName),
		strings.Join(selectCols, ", "),
		d.Quote(string(schema.Projects)),
		d.Quote(string(schema.ProjectStands)),
		d.Quote(schema.ProjectID), d.Quote(schema.ProjectID),
		strings.Join(groupCols, ", "),
	), nil
}

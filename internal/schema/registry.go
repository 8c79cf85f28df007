// Package schema is the static registry of the hierarchy's tables. It is the
// only source of identifiers that may be interpolated into SQL text.
package schema

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"aerodb/internal/dataerr"
	"aerodb/internal/naming"
)

// Entity is a registered table name.
type Entity string

const (
	Clients       Entity = "clients"
	Projects      Entity = "projects"
	Stands        Entity = "stands"
	Flights       Entity = "flights"
	FlightAI      Entity = "flight_ai"
	FlightFiles   Entity = "flight_files"
	ProjectStands Entity = "project_stands"
)

// Well-known columns referenced by the join resolver.
const (
	ClientID          = "CLIENT_ID"
	ProjectID         = "PROJECT_ID"
	StandPersistentID = "STAND_PERSISTENT_ID"
	StandTempID       = "STAND_ID"
	StandList         = "STAND_PERSISTENT_IDS"
	FlightID          = "FLIGHT_ID"
)

// ColumnType drives value normalization and DDL generation.
type ColumnType int

const (
	Integer ColumnType = iota
	Text
	Real
	Date
)

// Column is one registered column.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes one registered entity.
type Table struct {
	Entity  Entity
	Key     []string
	Columns []Column
}

// HopKind says how a relation is resolved.
type HopKind int

const (
	// Normalized relations follow a foreign key column with an equality match.
	Normalized HopKind = iota
	// DelimitedList relations search a comma-delimited key list on the target.
	DelimitedList
)

func (k HopKind) String() string {
	switch k {
	case Normalized:
		return "normalized"
	case DelimitedList:
		return "delimited_list"
	default:
		return "unknown"
	}
}

// Relation links a row of From to rows of To. For Normalized relations the
// From row's FromColumn value is matched against ToColumn. For DelimitedList
// relations the From row's FromColumn value is searched for inside ToColumn.
type Relation struct {
	From       Entity
	To         Entity
	FromColumn string
	ToColumn   string
	Kind       HopKind
}

var tables = []Table{
	{
		Entity: Clients,
		Key:    []string{ClientID},
		Columns: []Column{
			{ClientID, Integer},
			{"CLIENT_NAME", Text},
			{"CATEGORY", Text},
			{"CREATION_DATE", Date},
			{"NOTES", Text},
		},
	},
	{
		Entity: Projects,
		Key:    []string{ProjectID},
		Columns: []Column{
			{ProjectID, Integer},
			{"PROJECT_NAME", Text},
			{"CREATION_DATE", Date},
			{ClientID, Integer},
			{StandList, Text},
			{"QUESTIONS", Text},
			{"NOTES", Text},
		},
	},
	{
		Entity: Stands,
		Key:    []string{StandPersistentID},
		Columns: []Column{
			{StandPersistentID, Integer},
			{StandTempID, Text},
			{"STAND_NAME", Text},
			{ClientID, Integer},
			{"ACRES", Real},
			{"LOCATION", Text},
		},
	},
	{
		Entity: Flights,
		Key:    []string{FlightID},
		Columns: []Column{
			{FlightID, Integer},
			{"FLIGHT_NAME", Text},
			{"FLIGHT_DATE", Date},
			{ClientID, Integer},
			{ProjectID, Integer},
			{StandPersistentID, Integer},
		},
	},
	{
		Entity: FlightAI,
		Key:    []string{FlightID},
		Columns: []Column{
			{FlightID, Integer},
			{"AI_STATUS", Text},
			{"AI_MODEL", Text},
			{"AI_PROCESSED_DATE", Date},
		},
	},
	{
		Entity: FlightFiles,
		Key:    []string{FlightID},
		Columns: []Column{
			{FlightID, Integer},
			{"FILES_LOCATION", Text},
			{"FILES_COUNT", Integer},
			{"FILES_UPLOADED_DATE", Date},
		},
	},
	{
		Entity: ProjectStands,
		Key:    []string{ProjectID, StandPersistentID},
		Columns: []Column{
			{ProjectID, Integer},
			{StandPersistentID, Integer},
		},
	},
}

var relations = []Relation{
	{From: Projects, To: Clients, FromColumn: ClientID, ToColumn: ClientID, Kind: Normalized},
	{From: Stands, To: Clients, FromColumn: ClientID, ToColumn: ClientID, Kind: Normalized},
	{From: Stands, To: Projects, FromColumn: StandPersistentID, ToColumn: StandList, Kind: DelimitedList},
	{From: Flights, To: Stands, FromColumn: StandPersistentID, ToColumn: StandPersistentID, Kind: Normalized},
	{From: Flights, To: Clients, FromColumn: ClientID, ToColumn: ClientID, Kind: Normalized},
	{From: Flights, To: Projects, FromColumn: ProjectID, ToColumn: ProjectID, Kind: Normalized},
	{From: Flights, To: FlightAI, FromColumn: FlightID, ToColumn: FlightID, Kind: Normalized},
	{From: Flights, To: FlightFiles, FromColumn: FlightID, ToColumn: FlightID, Kind: Normalized},
}

// Registry answers identifier questions about the registered tables.
type Registry struct {
	namer  *naming.Namer
	tables map[Entity]*Table
	order  []Entity
}

// NewRegistry builds the registry. A nil namer uses the default naming rules.
func NewRegistry(namer *naming.Namer) *Registry {
	if namer == nil {
		namer = naming.Default()
	}
	r := &Registry{
		namer:  namer,
		tables: make(map[Entity]*Table, len(tables)),
	}
	for i := range tables {
		t := tables[i]
		r.tables[t.Entity] = &t
		r.order = append(r.order, t.Entity)
	}
	return r
}

// Entities lists registered entities in declaration order.
func (r *Registry) Entities() []Entity {
	return slices.Clone(r.order)
}

// ParseEntity validates a caller-supplied table name. Singular names are
// accepted and pluralized.
func (r *Registry) ParseEntity(name string) (Entity, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.tables[Entity(normalized)]; ok {
		return Entity(normalized), nil
	}
	if normalized != "" {
		if plural := Entity(r.namer.Pluralize(normalized)); r.tables[plural] != nil {
			return plural, nil
		}
	}
	return "", &dataerr.SchemaError{Entity: name, Reason: "unregistered entity"}
}

// Table returns the definition of e.
func (r *Registry) Table(e Entity) (*Table, error) {
	t, ok := r.tables[e]
	if !ok {
		return nil, &dataerr.SchemaError{Entity: string(e), Reason: "unregistered entity"}
	}
	return t, nil
}

// IDColumn returns the primary-key column of e.
func (r *Registry) IDColumn(e Entity) (string, error) {
	t, err := r.Table(e)
	if err != nil {
		return "", err
	}
	if len(t.Key) != 1 {
		return "", &dataerr.SchemaError{Entity: string(e), Reason: "entity has a composite key"}
	}
	return t.Key[0], nil
}

// NameColumn returns the display-name column of e.
func (r *Registry) NameColumn(e Entity) (string, error) {
	if _, err := r.Table(e); err != nil {
		return "", err
	}
	return r.namer.NameColumn(string(e)), nil
}

// Columns returns the column names of e in declaration order.
func (r *Registry) Columns(e Entity) ([]string, error) {
	t, err := r.Table(e)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name
	}
	return cols, nil
}

// HasColumn reports whether col is registered on e.
func (r *Registry) HasColumn(e Entity, col string) bool {
	t, ok := r.tables[e]
	if !ok {
		return false
	}
	_, found := t.column(col)
	return found
}

// CheckColumns fails with a SchemaError naming the first column not registered on e.
func (r *Registry) CheckColumns(e Entity, cols ...string) error {
	t, err := r.Table(e)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if _, ok := t.column(c); !ok {
			return &dataerr.SchemaError{Entity: string(e), Column: c, Reason: "unregistered column"}
		}
	}
	return nil
}

// Relation returns how rows of from reach rows of to.
func (r *Registry) Relation(from, to Entity) (Relation, error) {
	for _, rel := range relations {
		if rel.From == from && rel.To == to {
			return rel, nil
		}
	}
	return Relation{}, &dataerr.SchemaError{Entity: string(from), Reason: "no relation to " + string(to)}
}

// ColumnType returns the declared type of col, or Text for unknown columns.
func (t *Table) ColumnType(col string) ColumnType {
	if c, ok := t.column(col); ok {
		return c.Type
	}
	return Text
}

// Normalize converts a scanned driver value into the column's Go type:
// int64 for Integer, float64 for Real, string for Text and dates. Dates are
// rendered as YYYY-MM-DD whatever the driver returns.
func (t *Table) Normalize(col string, v any) any {
	if tm, ok := v.(time.Time); ok && t.ColumnType(col) == Date {
		return tm.Format(time.DateOnly)
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		if s, ok := v.(string); ok {
			b = []byte(s)
		} else {
			return v
		}
	}
	s := string(b)
	switch t.ColumnType(col) {
	case Integer:
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	case Real:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return s
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

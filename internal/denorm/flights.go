package denorm

import (
	"context"

	"aerodb/internal/gateway"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/view"
)

// flightHops are the relations followed from a flight, in merge order
// before the flight itself.
var flightHops = []schema.Entity{schema.Stands, schema.Clients, schema.Projects}

// flightSatellites are merged after the flight.
var flightSatellites = []schema.Entity{schema.FlightAI, schema.FlightFiles}

// FullFlightData returns each flight merged with its stand, client, project,
// AI status and file records.
func (s *Service) FullFlightData(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Flights, ids)
		if err != nil {
			return err
		}
		flights, missing, err := s.fetchByIDs(ctx, gw, schema.Flights, keys)
		if err != nil {
			return err
		}
		rows, absent, err := s.fullFlights(ctx, s.newHopper(gw), flights)
		if err != nil {
			return err
		}
		res.Rows, res.Missing, res.Absent = rows, missing, absent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// StandFullFlightData groups the full rows of each stand's flights under the
// stand key. Stands that do not exist are reported missing.
func (s *Service) StandFullFlightData(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Stands, ids)
		if err != nil {
			return err
		}
		keys = uniqueIDs(keys)
		h := s.newHopper(gw)

		stands, missing, err := s.fetchByIDs(ctx, gw, schema.Stands, keys)
		if err != nil {
			return err
		}
		h.prime(schema.Stands, schema.StandPersistentID, stands)
		h.primeEmpty(schema.Stands, schema.StandPersistentID, missing)

		flights, err := s.selectWhereIn(ctx, gw, schema.Flights, schema.StandPersistentID, keys)
		if err != nil {
			return err
		}
		rows, absent, err := s.fullFlights(ctx, h, flights)
		if err != nil {
			return err
		}

		v := view.New(schema.StandPersistentID)
		for _, k := range keys {
			v.Append(k)
		}
		for i, r := range rows {
			v.Append(flights[i].Value(schema.StandPersistentID), r)
		}
		res.View, res.Missing, res.Absent = v, missing, absent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// fullFlights merges each flight with its related rows. The result is
// aligned with flights.
func (s *Service) fullFlights(ctx context.Context, h *hopper, flights []*rowset.Row) ([]*rowset.Row, []Absent, error) {
	rels := make(map[schema.Entity]schema.Relation, len(flightHops)+len(flightSatellites))
	for _, to := range append(append([]schema.Entity{}, flightHops...), flightSatellites...) {
		rel, err := s.registry.Relation(schema.Flights, to)
		if err != nil {
			return nil, nil, err
		}
		rels[to] = rel
	}

	out := make([]*rowset.Row, len(flights))
	absent := make([][]Absent, len(flights))
	err := s.fanOut(ctx, len(flights), func(ctx context.Context, i int) error {
		f := flights[i]
		parts := make([]part, 0, len(flightHops)+1+len(flightSatellites))
		for _, to := range flightHops {
			row, err := h.normalized(ctx, rels[to], f)
			if err != nil {
				return err
			}
			parts = append(parts, part{to, row})
		}
		parts = append(parts, part{schema.Flights, f})
		for _, to := range flightSatellites {
			row, err := h.normalized(ctx, rels[to], f)
			if err != nil {
				return err
			}
			parts = append(parts, part{to, row})
		}
		out[i], absent[i] = h.assemble(f.Value(schema.FlightID), parts...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, flatten(absent), nil
}

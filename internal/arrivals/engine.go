package arrivals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stmbus/stm-go/internal/gtfs"
	"github.com/stmbus/stm-go/internal/models"
)

// ErrStopNotFound means the query matched no stop. It is a normal,
// user-facing outcome and maps to a 404 upstream, not a fault.
var ErrStopNotFound = errors.New("arrivals: stop not found")

// pastDriftTolerance mirrors the schedule planner: live predictions up to
// this far in the past still count.
const pastDriftTolerance = 30 * time.Second

// FeedSource supplies the two decoded realtime feeds for a query.
type FeedSource interface {
	Fetch(ctx context.Context) ([]models.LiveTripUpdate, []models.LiveVehiclePosition, error)
}

// Engine reconciles the live feeds with the static schedule into a ranked,
// deduplicated arrival list per query. The static index is read-only; the
// only shared mutable state lives inside the feed source's caches.
type Engine struct {
	index *gtfs.Index
	feeds FeedSource
	now   func() time.Time
}

// NewEngine creates a merge engine over a built static index and a feed
// source.
func NewEngine(index *gtfs.Index, feeds FeedSource) *Engine {
	return &Engine{index: index, feeds: feeds, now: time.Now}
}

// Arrivals answers a stop query in one pass: resolve the stop, merge the
// live feeds against the candidate stop set, and fall back to the static
// schedule when the live merge yields nothing. A feed fetch failure fails
// the whole query; an unknown stop returns ErrStopNotFound.
func (e *Engine) Arrivals(ctx context.Context, query string, max int) (models.ArrivalsResponse, error) {
	matches := e.index.Resolve(query)
	if len(matches) == 0 {
		return models.ArrivalsResponse{}, ErrStopNotFound
	}
	base := matches[0]

	// Candidate stop keys in insertion order: the resolved id, sibling
	// boardable ids, and the public code (some feeds key stop-time
	// updates by code rather than id).
	candidates := make(map[string]struct{})
	var candidateOrder []string
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := candidates[key]; ok {
			return
		}
		candidates[key] = struct{}{}
		candidateOrder = append(candidateOrder, key)
	}
	add(base.ID)
	for _, s := range e.index.Siblings(base) {
		add(s.ID)
	}
	add(base.Code)

	tu, vp, err := e.feeds.Fetch(ctx)
	if err != nil {
		return models.ArrivalsResponse{}, fmt.Errorf("arrivals: %w", err)
	}

	// Latest position per trip; later feed entries overwrite earlier ones.
	vehByTrip := make(map[string]models.LiveVehiclePosition, len(vp))
	for _, v := range vp {
		vehByTrip[v.TripID] = v
	}

	now := e.now()
	nowEpoch := now.Unix()
	cutoff := nowEpoch - int64(pastDriftTolerance/time.Second)

	rows := []models.Arrival{}
	for _, upd := range tu {
		if upd.TripID == "" {
			continue
		}
		when := int64(0)
		for _, st := range upd.StopTimes {
			if _, ok := candidates[st.StopID]; !ok {
				continue
			}
			if st.Arrival > 0 {
				when = st.Arrival
			} else if st.Departure > 0 {
				when = st.Departure
			}
			break
		}
		if when == 0 || when < cutoff {
			continue
		}

		rows = append(rows, models.Arrival{
			Route:        e.routeLabel(upd),
			Headsign:     e.headsign(upd.TripID),
			TripID:       upd.TripID,
			StopID:       base.ID,
			ETASeconds:   when - nowEpoch,
			ArrivalEpoch: when,
			Vehicle:      e.vehicleSnapshot(vehByTrip, upd.TripID, base),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ETASeconds < rows[j].ETASeconds })
	if len(rows) > max {
		rows = rows[:max]
	}

	source := models.SourceRealtime
	note := ""
	if len(rows) == 0 {
		// Public codes are not valid schedule keys; only known stop ids
		// feed the schedule fallback.
		var sched []models.Arrival
		for _, key := range candidateOrder {
			if _, ok := e.index.StopByID(key); !ok {
				continue
			}
			sched = append(sched, e.index.NextScheduled(key, now, max)...)
		}
		sort.Slice(sched, func(i, j int) bool { return sched[i].ArrivalEpoch < sched[j].ArrivalEpoch })
		if len(sched) > max {
			sched = sched[:max]
		}
		if len(sched) > 0 {
			rows = sched
			source = models.SourceSchedule
		} else {
			source = models.SourceNone
		}

		if !base.Boardable() {
			lt := base.LocationType
			if lt == "" {
				lt = "2"
			}
			ref := base.Code
			if ref == "" {
				ref = base.ID
			}
			note = fmt.Sprintf("%q (%s) is not a boardable stop (location_type=%s). Showing boardable siblings/schedule instead.",
				base.Name, ref, lt)
		}
	}

	return models.ArrivalsResponse{
		Stop:        base.Summary(),
		Source:      source,
		Note:        note,
		LastUpdated: now,
		Arrivals:    rows,
	}, nil
}

// routeLabel resolves the rider-facing route name: static trip's route
// first, then the route hint the live entity carries, then a literal "?".
// A row never fails for missing route metadata.
func (e *Engine) routeLabel(upd models.LiveTripUpdate) string {
	rid := upd.RouteID
	if trip, ok := e.index.TripByID(upd.TripID); ok && trip.RouteID != "" {
		rid = trip.RouteID
	}
	if route, ok := e.index.RouteByID(rid); ok {
		if label := route.Label(); label != "" {
			return label
		}
	}
	if upd.RouteID != "" {
		return upd.RouteID
	}
	if rid != "" {
		return rid
	}
	return "?"
}

func (e *Engine) headsign(tripID string) string {
	if trip, ok := e.index.TripByID(tripID); ok {
		return trip.Headsign
	}
	return ""
}

// vehicleSnapshot attaches telemetry when a position exists for the trip.
// Distance is measured to the originally queried stop's coordinates, not
// the matched sibling's.
func (e *Engine) vehicleSnapshot(vehByTrip map[string]models.LiveVehiclePosition, tripID string, base *models.Stop) *models.Vehicle {
	v, ok := vehByTrip[tripID]
	if !ok {
		return nil
	}
	return &models.Vehicle{
		ID:              v.VehicleID,
		Lat:             v.Lat,
		Lon:             v.Lon,
		Bearing:         v.Bearing,
		DistanceMToStop: int(math.Round(haversineMeters(v.Lat, v.Lon, base.Lat, base.Lon))),
		OccupancyStatus: v.Occupancy,
	}
}

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dphi := toRad(lat2 - lat1)
	dlmb := toRad(lon2 - lon1)
	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dlmb/2)*math.Sin(dlmb/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

// ResolveStops is the free-text stop resolution surface.
func (e *Engine) ResolveStops(query string) []models.StopSummary {
	matches := e.index.Resolve(query)
	out := make([]models.StopSummary, 0, len(matches))
	for _, s := range matches {
		out = append(out, s.Summary())
	}
	return out
}

// InspectStops exposes grouping metadata for a query, for debugging stop
// configuration.
func (e *Engine) InspectStops(query string) []models.StopDetail {
	matches := e.index.Resolve(query)
	out := make([]models.StopDetail, 0, len(matches))
	for _, s := range matches {
		out = append(out, s.Detail())
	}
	return out
}

package gtfs

import (
	"sort"
	"time"

	"github.com/stmbus/stm-go/internal/models"
)

// pastDriftTolerance absorbs small clock skew between this host and the
// schedule: departures up to this far in the past still count.
const pastDriftTolerance = 30 * time.Second

// NextScheduled returns the next max scheduled departures at a stop,
// schedule-only, with no vehicle data. Stop-time offsets are added to local
// midnight of now, which places offsets ≥ 24:00:00 on the following day for
// trips that started before midnight. Scanning stops after max candidates;
// the per-stop list is pre-sorted, so the early exit is bounded rather than
// globally optimal when inactive services thin the list.
func (ix *Index) NextScheduled(stopID string, now time.Time, max int) []models.Arrival {
	list := ix.stopTimesByStop[stopID]
	if len(list) == 0 || max <= 0 {
		return nil
	}

	midnight := LocalMidnight(now).Unix()
	nowEpoch := now.Unix()
	cutoff := nowEpoch - int64(pastDriftTolerance/time.Second)

	var out []models.Arrival
	for _, st := range list {
		trip, ok := ix.tripsByID[st.TripID]
		if !ok {
			continue
		}
		if !ix.ServiceActive(trip.ServiceID, now) {
			continue
		}
		t := st.EffectiveSec()
		if t < 0 {
			continue
		}
		whenEpoch := midnight + int64(t)
		if whenEpoch < cutoff {
			continue
		}

		route := ix.routesByID[trip.RouteID]
		label := route.Label()
		if label == "" {
			label = "?"
		}

		out = append(out, models.Arrival{
			Route:        label,
			Headsign:     trip.Headsign,
			TripID:       trip.ID,
			StopID:       stopID,
			ETASeconds:   whenEpoch - nowEpoch,
			ArrivalEpoch: whenEpoch,
		})
		if len(out) >= max {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ArrivalEpoch < out[j].ArrivalEpoch })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

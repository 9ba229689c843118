package arrivals

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stmbus/stm-go/internal/feed"
	"github.com/stmbus/stm-go/internal/gtfs"
	"github.com/stmbus/stm-go/internal/models"
)

// Monday 2025-06-02 noon UTC; WK services run.
var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// fakeFeeds is a canned FeedSource.
type fakeFeeds struct {
	tu  []models.LiveTripUpdate
	vp  []models.LiveVehiclePosition
	err error
}

func (f *fakeFeeds) Fetch(ctx context.Context) ([]models.LiveTripUpdate, []models.LiveVehiclePosition, error) {
	return f.tu, f.vp, f.err
}

func testIndex(t *testing.T) *gtfs.Index {
	t.Helper()
	ix, err := gtfs.Build(gtfs.Tables{
		Stops: []map[string]string{
			{"stop_id": "S1", "stop_code": "50410", "stop_name": "Berri / Sainte-Catherine", "stop_lat": "45.515000", "stop_lon": "-73.561000"},
			{"stop_id": "S6", "stop_code": "50410", "stop_name": "Berri / Sainte-Catherine (quai B)", "stop_lat": "45.514900", "stop_lon": "-73.560900"},
			{"stop_id": "ST1", "stop_name": "Station Berri-UQAM", "stop_lat": "45.515500", "stop_lon": "-73.561500", "location_type": "1"},
			{"stop_id": "E1", "stop_name": "Berri-UQAM entrance", "stop_lat": "45.515300", "stop_lon": "-73.561200", "location_type": "2", "parent_station": "ST1"},
			{"stop_id": "S3", "stop_name": "Berri-UQAM quai 1", "stop_lat": "45.515600", "stop_lon": "-73.561600", "parent_station": "ST1"},
			{"stop_id": "S5", "stop_name": "Rue déserte", "stop_lat": "45.520000", "stop_lon": "-73.565000"},
		},
		Routes: []map[string]string{
			{"route_id": "R10", "route_short_name": "10", "route_long_name": "De Lorimier"},
		},
		Trips: []map[string]string{
			{"trip_id": "T1", "route_id": "R10", "service_id": "WK", "trip_headsign": "Nord"},
			{"trip_id": "T5", "route_id": "R10", "service_id": "WK", "trip_headsign": "Sud"},
		},
		Calendar: []map[string]string{
			{"service_id": "WK", "monday": "1", "tuesday": "1", "wednesday": "1", "thursday": "1", "friday": "1", "saturday": "0", "sunday": "0", "start_date": "20250101", "end_date": "20261231"},
		},
		StopTimes: []map[string]string{
			{"trip_id": "T1", "stop_id": "S1", "arrival_time": "12:05:00", "departure_time": "12:05:00", "stop_sequence": "8"},
			{"trip_id": "T1", "stop_id": "S3", "arrival_time": "12:20:00", "departure_time": "12:20:00", "stop_sequence": "9"},
		},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ix
}

func newTestEngine(t *testing.T, feeds FeedSource) *Engine {
	t.Helper()
	e := NewEngine(testIndex(t), feeds)
	e.now = func() time.Time { return testNow }
	return e
}

func TestArrivalsRealtimeWithVehicle(t *testing.T) {
	when := testNow.Unix() + 180
	bearing := 45.0
	feeds := &fakeFeeds{
		tu: []models.LiveTripUpdate{
			{TripID: "T1", StopTimes: []models.LiveStopTime{
				{StopID: "OTHER", Arrival: when - 60},
				{StopID: "S1", Arrival: when},
			}},
		},
		vp: []models.LiveVehiclePosition{
			// Roughly 200m due north of S1.
			{TripID: "T1", VehicleID: "V1", Lat: 45.5167986, Lon: -73.561000, Bearing: &bearing, Occupancy: "FEW_SEATS_AVAILABLE"},
		},
	}
	e := newTestEngine(t, feeds)

	resp, err := e.Arrivals(context.Background(), "50410", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if resp.Source != models.SourceRealtime {
		t.Errorf("source = %q, want realtime", resp.Source)
	}
	if len(resp.Arrivals) != 1 {
		t.Fatalf("expected 1 arrival, got %d", len(resp.Arrivals))
	}
	a := resp.Arrivals[0]
	if a.ETASeconds != 180 {
		t.Errorf("eta = %d, want 180", a.ETASeconds)
	}
	if a.Route != "10" || a.Headsign != "Nord" {
		t.Errorf("route/headsign = %q/%q", a.Route, a.Headsign)
	}
	if a.StopID != "S1" {
		t.Errorf("arrival stop = %s, want queried stop S1", a.StopID)
	}
	if a.Vehicle == nil {
		t.Fatal("expected vehicle telemetry")
	}
	if a.Vehicle.DistanceMToStop < 190 || a.Vehicle.DistanceMToStop > 210 {
		t.Errorf("distance = %dm, want ≈200", a.Vehicle.DistanceMToStop)
	}
	if a.Vehicle.Bearing == nil || *a.Vehicle.Bearing != 45.0 {
		t.Errorf("bearing = %v", a.Vehicle.Bearing)
	}
	if a.Vehicle.OccupancyStatus != "FEW_SEATS_AVAILABLE" {
		t.Errorf("occupancy = %q", a.Vehicle.OccupancyStatus)
	}
}

func TestArrivalsCandidateKeys(t *testing.T) {
	when := testNow.Unix() + 240
	tests := []struct {
		name   string
		stopID string
	}{
		{"matched by public code", "50410"},
		{"matched by sibling id", "S6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeds := &fakeFeeds{
				tu: []models.LiveTripUpdate{
					{TripID: "T1", StopTimes: []models.LiveStopTime{{StopID: tt.stopID, Arrival: when}}},
				},
			}
			e := newTestEngine(t, feeds)
			resp, err := e.Arrivals(context.Background(), "50410", 5)
			if err != nil {
				t.Fatalf("Arrivals failed: %v", err)
			}
			if len(resp.Arrivals) != 1 {
				t.Fatalf("expected 1 arrival via %s, got %d", tt.stopID, len(resp.Arrivals))
			}
			if resp.Arrivals[0].StopID != "S1" {
				t.Errorf("arrival reports %s, want the queried stop S1", resp.Arrivals[0].StopID)
			}
		})
	}
}

func TestArrivalsSkipsAnomalies(t *testing.T) {
	feeds := &fakeFeeds{
		tu: []models.LiveTripUpdate{
			{TripID: "", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: testNow.Unix() + 60}}},
			{TripID: "T1", StopTimes: []models.LiveStopTime{{StopID: "S1"}}},                             // no usable time
			{TripID: "T5", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: testNow.Unix() - 60}}}, // stale
			{TripID: "T9", StopTimes: []models.LiveStopTime{{StopID: "NOPE", Arrival: testNow.Unix() + 60}}},
		},
	}
	e := newTestEngine(t, feeds)
	resp, err := e.Arrivals(context.Background(), "50410", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	// Everything anomalous is skipped per-row; the merge falls back.
	if resp.Source != models.SourceSchedule {
		t.Errorf("source = %q, want schedule fallback", resp.Source)
	}
}

func TestArrivalsMaxAndOrdering(t *testing.T) {
	base := testNow.Unix()
	feeds := &fakeFeeds{
		tu: []models.LiveTripUpdate{
			{TripID: "T5", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: base + 600}}},
			{TripID: "T1", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: base + 120}}},
			{TripID: "T9", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: base + 300}}},
		},
	}
	e := newTestEngine(t, feeds)
	resp, err := e.Arrivals(context.Background(), "50410", 2)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if len(resp.Arrivals) != 2 {
		t.Fatalf("expected max=2 rows, got %d", len(resp.Arrivals))
	}
	if resp.Arrivals[0].ETASeconds != 120 || resp.Arrivals[1].ETASeconds != 300 {
		t.Errorf("rows out of order: %d, %d", resp.Arrivals[0].ETASeconds, resp.Arrivals[1].ETASeconds)
	}
}

func TestArrivalsRouteFallbackChain(t *testing.T) {
	base := testNow.Unix()
	feeds := &fakeFeeds{
		tu: []models.LiveTripUpdate{
			// Unknown trip, feed carries a route hint.
			{TripID: "TX", RouteID: "R99", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: base + 60}}},
			// Unknown trip, no hint at all.
			{TripID: "TY", StopTimes: []models.LiveStopTime{{StopID: "S1", Arrival: base + 90}}},
		},
	}
	e := newTestEngine(t, feeds)
	resp, err := e.Arrivals(context.Background(), "50410", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if len(resp.Arrivals) != 2 {
		t.Fatalf("expected 2 arrivals, got %d", len(resp.Arrivals))
	}
	if resp.Arrivals[0].Route != "R99" {
		t.Errorf("route = %q, want feed hint R99", resp.Arrivals[0].Route)
	}
	if resp.Arrivals[1].Route != "?" {
		t.Errorf("route = %q, want \"?\" placeholder", resp.Arrivals[1].Route)
	}
}

func TestArrivalsScheduleFallback(t *testing.T) {
	e := newTestEngine(t, &fakeFeeds{})
	resp, err := e.Arrivals(context.Background(), "50410", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if resp.Source != models.SourceSchedule {
		t.Errorf("source = %q, want schedule", resp.Source)
	}
	if len(resp.Arrivals) != 1 {
		t.Fatalf("expected 1 scheduled departure, got %d", len(resp.Arrivals))
	}
	if resp.Arrivals[0].TripID != "T1" || resp.Arrivals[0].ETASeconds != 300 {
		t.Errorf("unexpected fallback row: %+v", resp.Arrivals[0])
	}
	if resp.Note != "" {
		t.Errorf("boardable stop must not carry a note, got %q", resp.Note)
	}
}

func TestArrivalsEntranceFallbackNote(t *testing.T) {
	e := newTestEngine(t, &fakeFeeds{})
	resp, err := e.Arrivals(context.Background(), "E1", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if resp.Source != models.SourceSchedule {
		t.Errorf("source = %q, want schedule via boardable sibling", resp.Source)
	}
	if len(resp.Arrivals) != 1 {
		t.Fatalf("expected 1 arrival from sibling quay, got %d", len(resp.Arrivals))
	}
	if resp.Arrivals[0].StopID != "S3" {
		t.Errorf("fallback stop = %s, want sibling S3", resp.Arrivals[0].StopID)
	}
	if resp.Note == "" {
		t.Fatal("expected a note for the non-boardable entrance")
	}
	if !strings.Contains(resp.Note, "Berri-UQAM entrance") || !strings.Contains(resp.Note, "location_type=2") {
		t.Errorf("note missing entrance details: %q", resp.Note)
	}
	if resp.Stop.Boardable {
		t.Error("stop summary must report the entrance as non-boardable")
	}
}

func TestArrivalsSourceNone(t *testing.T) {
	e := newTestEngine(t, &fakeFeeds{})
	resp, err := e.Arrivals(context.Background(), "S5", 5)
	if err != nil {
		t.Fatalf("Arrivals failed: %v", err)
	}
	if resp.Source != models.SourceNone {
		t.Errorf("source = %q, want none", resp.Source)
	}
	if resp.Arrivals == nil {
		t.Error("arrivals must be an empty list, not nil")
	}
	if len(resp.Arrivals) != 0 {
		t.Errorf("expected no arrivals, got %d", len(resp.Arrivals))
	}
}

func TestArrivalsUpstreamErrorPropagates(t *testing.T) {
	feeds := &fakeFeeds{err: &feed.UpstreamError{URL: "https://example.test/tripUpdates", Status: 503}}
	e := newTestEngine(t, feeds)
	_, err := e.Arrivals(context.Background(), "50410", 5)
	if err == nil {
		t.Fatal("expected feed failure to fail the query")
	}
	var upstream *feed.UpstreamError
	if !errors.As(err, &upstream) {
		t.Errorf("expected UpstreamError in chain, got %v", err)
	}
}

func TestArrivalsStopNotFound(t *testing.T) {
	e := newTestEngine(t, &fakeFeeds{})
	_, err := e.Arrivals(context.Background(), "does not exist", 5)
	if !errors.Is(err, ErrStopNotFound) {
		t.Errorf("expected ErrStopNotFound, got %v", err)
	}
}

func TestResolveAndInspectSurfaces(t *testing.T) {
	e := newTestEngine(t, &fakeFeeds{})

	stops := e.ResolveStops("50410")
	if len(stops) != 1 || stops[0].ID != "S1" {
		t.Fatalf("ResolveStops = %v", stops)
	}
	if !stops[0].Boardable {
		t.Error("S1 must be boardable")
	}

	details := e.InspectStops("E1")
	if len(details) != 1 {
		t.Fatalf("InspectStops = %v", details)
	}
	d := details[0]
	if d.LocationType != "2" || d.ParentStation != "ST1" || d.Boardable {
		t.Errorf("unexpected detail: %+v", d)
	}
}

func TestHaversineMeters(t *testing.T) {
	// Same point.
	if d := haversineMeters(45.5, -73.56, 45.5, -73.56); d != 0 {
		t.Errorf("zero distance = %f", d)
	}
	// One degree of latitude ≈ 111.2 km.
	d := haversineMeters(45.0, -73.56, 46.0, -73.56)
	if d < 110000 || d > 112000 {
		t.Errorf("1° latitude = %fm, want ≈111200", d)
	}
}

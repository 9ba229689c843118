package models

import (
	"time"
)

// Stop is a single row from the GTFS stops table. LocationType "0" or empty
// means a rider can board there; anything else is a station, entrance or
// other grouping node.
type Stop struct {
	ID            string  `json:"stop_id"`
	Code          string  `json:"stop_code,omitempty"`
	Name          string  `json:"stop_name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	ParentStation string  `json:"parent_station,omitempty"`
	LocationType  string  `json:"location_type,omitempty"`
}

// Boardable reports whether a rider can physically board at this stop.
func (s *Stop) Boardable() bool {
	return s.LocationType == "" || s.LocationType == "0"
}

// Summary converts a stop to the shape returned by the query surface.
func (s *Stop) Summary() StopSummary {
	return StopSummary{
		ID:        s.ID,
		Code:      s.Code,
		Name:      s.Name,
		Lat:       s.Lat,
		Lon:       s.Lon,
		Boardable: s.Boardable(),
	}
}

// Detail converts a stop to the inspector response shape.
func (s *Stop) Detail() StopDetail {
	lt := s.LocationType
	if lt == "" {
		lt = "0"
	}
	return StopDetail{
		ID:            s.ID,
		Code:          s.Code,
		Name:          s.Name,
		LocationType:  lt,
		ParentStation: s.ParentStation,
		Boardable:     s.Boardable(),
	}
}

// Route is a single row from the GTFS routes table.
type Route struct {
	ID        string `json:"route_id"`
	ShortName string `json:"route_short_name"`
	LongName  string `json:"route_long_name"`
}

// Label returns the rider-facing name for the route, preferring the short
// name painted on the vehicle.
func (r *Route) Label() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	if r.LongName != "" {
		return r.LongName
	}
	return r.ID
}

// Trip is a single row from the GTFS trips table.
type Trip struct {
	ID        string `json:"trip_id"`
	RouteID   string `json:"route_id"`
	ServiceID string `json:"service_id"`
	Headsign  string `json:"trip_headsign"`
}

// StopTime is one scheduled call of a trip at a stop. Arrival and Departure
// are seconds since local midnight and may exceed 86400 for trips that run
// past midnight; -1 means the column was empty.
type StopTime struct {
	TripID    string
	Arrival   int
	Departure int
	Seq       int
}

// EffectiveSec returns the departure when present, else the arrival.
// Returns -1 when the row carries neither.
func (st StopTime) EffectiveSec() int {
	if st.Departure >= 0 {
		return st.Departure
	}
	return st.Arrival
}

// Calendar is a weekly service pattern with an inclusive validity range.
// Days is indexed by time.Weekday (Sunday=0). StartDate and EndDate are
// YYYYMMDD strings, compared lexically as local calendar dates.
type Calendar struct {
	ServiceID string
	Days      [7]bool
	StartDate string
	EndDate   string
}

// Calendar exception types from calendar_dates.txt.
const (
	ServiceAdded   = 1
	ServiceRemoved = 2
)

// LiveStopTime is one predicted call from a trip-update entity. Times are
// epoch seconds; zero means the field was absent from the feed.
type LiveStopTime struct {
	StopID    string
	Arrival   int64
	Departure int64
}

// LiveTripUpdate is a decoded trip-update entity from the realtime feed.
type LiveTripUpdate struct {
	TripID    string
	RouteID   string
	StopTimes []LiveStopTime
}

// LiveVehiclePosition is a decoded vehicle-position entity from the
// realtime feed.
type LiveVehiclePosition struct {
	TripID    string
	VehicleID string
	Lat       float64
	Lon       float64
	Bearing   *float64
	Occupancy string
}

// Vehicle is the telemetry snapshot attached to a realtime arrival.
type Vehicle struct {
	ID              string   `json:"id,omitempty"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	Bearing         *float64 `json:"bearing,omitempty"`
	DistanceMToStop int      `json:"distance_m_to_stop"`
	OccupancyStatus string   `json:"occupancy_status,omitempty"`
}

// Arrival is one upcoming departure at a stop, produced fresh per query.
type Arrival struct {
	Route        string   `json:"route"`
	Headsign     string   `json:"headsign"`
	TripID       string   `json:"trip_id"`
	StopID       string   `json:"stop_id"`
	ETASeconds   int64    `json:"eta_seconds"`
	ArrivalEpoch int64    `json:"arrival_epoch_utc"`
	Vehicle      *Vehicle `json:"vehicle,omitempty"`
}

// StopSummary identifies the resolved stop in an arrivals response.
type StopSummary struct {
	ID        string  `json:"stop_id"`
	Code      string  `json:"stop_code,omitempty"`
	Name      string  `json:"stop_name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Boardable bool    `json:"boardable"`
}

// StopDetail is the inspector view of a stop, including grouping fields
// that the summary omits.
type StopDetail struct {
	ID            string `json:"stop_id"`
	Code          string `json:"stop_code,omitempty"`
	Name          string `json:"stop_name"`
	LocationType  string `json:"location_type"`
	ParentStation string `json:"parent_station,omitempty"`
	Boardable     bool   `json:"boardable"`
}

// Arrival data sources reported by the merge engine.
const (
	SourceRealtime = "realtime"
	SourceSchedule = "schedule"
	SourceNone     = "none"
)

// ArrivalsResponse is the full answer to "when is the next bus at this
// stop". Arrivals is never nil; an empty list with Source "none" is a
// valid outcome.
type ArrivalsResponse struct {
	Stop        StopSummary `json:"stop"`
	Source      string      `json:"source"`
	Note        string      `json:"note,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
	Arrivals    []Arrival   `json:"arrivals"`
}

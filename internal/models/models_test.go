package models

import (
	"testing"
)

func TestStopBoardable(t *testing.T) {
	tests := []struct {
		locationType string
		want         bool
	}{
		{"", true},
		{"0", true},
		{"1", false},
		{"2", false},
		{"4", false},
	}
	for _, tt := range tests {
		s := Stop{ID: "S", LocationType: tt.locationType}
		if got := s.Boardable(); got != tt.want {
			t.Errorf("Boardable(location_type=%q) = %v, want %v", tt.locationType, got, tt.want)
		}
	}
}

func TestStopDetailDefaultsLocationType(t *testing.T) {
	s := Stop{ID: "S1", ParentStation: "ST1"}
	d := s.Detail()
	if d.LocationType != "0" {
		t.Errorf("empty location_type must surface as \"0\", got %q", d.LocationType)
	}
	if d.ParentStation != "ST1" || !d.Boardable {
		t.Errorf("detail = %+v", d)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name  string
		route Route
		want  string
	}{
		{"short name wins", Route{ID: "R10", ShortName: "10", LongName: "De Lorimier"}, "10"},
		{"long name fallback", Route{ID: "R747", LongName: "Navette aéroport"}, "Navette aéroport"},
		{"id as last resort", Route{ID: "R99"}, "R99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.route.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStopTimeEffectiveSec(t *testing.T) {
	tests := []struct {
		name string
		st   StopTime
		want int
	}{
		{"departure preferred", StopTime{Arrival: 100, Departure: 160}, 160},
		{"arrival when departure absent", StopTime{Arrival: 100, Departure: -1}, 100},
		{"zero departure is valid midnight", StopTime{Arrival: 100, Departure: 0}, 0},
		{"both absent", StopTime{Arrival: -1, Departure: -1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.EffectiveSec(); got != tt.want {
				t.Errorf("EffectiveSec() = %d, want %d", got, tt.want)
			}
		})
	}
}

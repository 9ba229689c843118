package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/stmbus/stm-go/internal/models"
)

// MissingResourceError indicates a required GTFS table was absent from the
// schedule bundle. The process must not serve traffic with a partial index,
// so callers treat this as fatal at startup.
type MissingResourceError struct {
	Resource string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("gtfs: missing required resource %q", e.Resource)
}

// Tables holds raw GTFS records as column-name → value rows, one slice per
// table. Calendar and CalendarDates may be nil; the rest are required.
type Tables struct {
	Stops         []map[string]string
	Routes        []map[string]string
	Trips         []map[string]string
	Calendar      []map[string]string
	CalendarDates []map[string]string
	StopTimes     []map[string]string
}

// Index is the read-only lookup bundle built once at startup. All maps are
// keyed by natural GTFS identifiers; nothing mutates the index after Build
// returns, so it is safe for concurrent readers without locking.
type Index struct {
	stops            []*models.Stop
	stopsByID        map[string]*models.Stop
	stopsByCode      map[string]*models.Stop
	routesByID       map[string]models.Route
	tripsByID        map[string]models.Trip
	childrenByParent map[string][]*models.Stop
	stopTimesByStop  map[string][]models.StopTime
	calendars        map[string]models.Calendar
	exceptions       map[string]map[string]int
}

// Build constructs the index from raw tabular records. Duplicate natural
// keys overwrite earlier rows. Per-stop stop-time lists come out sorted
// ascending by effective time so downstream lookups never re-sort.
func Build(t Tables) (*Index, error) {
	for _, req := range []struct {
		name string
		rows []map[string]string
	}{
		{"stops.txt", t.Stops},
		{"routes.txt", t.Routes},
		{"trips.txt", t.Trips},
		{"stop_times.txt", t.StopTimes},
	} {
		if req.rows == nil {
			return nil, &MissingResourceError{Resource: req.name}
		}
	}

	ix := &Index{
		stopsByID:        make(map[string]*models.Stop, len(t.Stops)),
		stopsByCode:      make(map[string]*models.Stop),
		routesByID:       make(map[string]models.Route, len(t.Routes)),
		tripsByID:        make(map[string]models.Trip, len(t.Trips)),
		childrenByParent: make(map[string][]*models.Stop),
		stopTimesByStop:  make(map[string][]models.StopTime),
		calendars:        make(map[string]models.Calendar),
		exceptions:       make(map[string]map[string]int),
	}

	ix.stops = make([]*models.Stop, 0, len(t.Stops))
	for _, row := range t.Stops {
		lat, _ := strconv.ParseFloat(row["stop_lat"], 64)
		lon, _ := strconv.ParseFloat(row["stop_lon"], 64)
		s := &models.Stop{
			ID:            row["stop_id"],
			Code:          row["stop_code"],
			Name:          row["stop_name"],
			Lat:           lat,
			Lon:           lon,
			ParentStation: row["parent_station"],
			LocationType:  row["location_type"],
		}
		ix.stops = append(ix.stops, s)
		ix.stopsByID[s.ID] = s
		// First boardable stop wins for a shared code, so a pole that
		// serves several bays resolves to the table's first row.
		if s.Code != "" && s.Boardable() {
			if _, ok := ix.stopsByCode[s.Code]; !ok {
				ix.stopsByCode[s.Code] = s
			}
		}
		if s.ParentStation != "" {
			ix.childrenByParent[s.ParentStation] = append(ix.childrenByParent[s.ParentStation], s)
		}
	}

	for _, row := range t.Routes {
		r := models.Route{
			ID:        row["route_id"],
			ShortName: row["route_short_name"],
			LongName:  row["route_long_name"],
		}
		ix.routesByID[r.ID] = r
	}

	for _, row := range t.Trips {
		tr := models.Trip{
			ID:        row["trip_id"],
			RouteID:   row["route_id"],
			ServiceID: row["service_id"],
			Headsign:  row["trip_headsign"],
		}
		ix.tripsByID[tr.ID] = tr
	}

	for _, row := range t.Calendar {
		c := models.Calendar{
			ServiceID: row["service_id"],
			StartDate: row["start_date"],
			EndDate:   row["end_date"],
		}
		for wd, col := range weekdayColumns {
			c.Days[wd] = row[col] == "1"
		}
		ix.calendars[c.ServiceID] = c
	}

	for _, row := range t.CalendarDates {
		sid := row["service_id"]
		date := row["date"]
		exc, err := strconv.Atoi(row["exception_type"])
		if err != nil || sid == "" || date == "" {
			continue
		}
		if ix.exceptions[sid] == nil {
			ix.exceptions[sid] = make(map[string]int)
		}
		ix.exceptions[sid][date] = exc
	}

	for _, row := range t.StopTimes {
		sid := row["stop_id"]
		seq, _ := strconv.Atoi(row["stop_sequence"])
		ix.stopTimesByStop[sid] = append(ix.stopTimesByStop[sid], models.StopTime{
			TripID:    row["trip_id"],
			Arrival:   ParseTime(row["arrival_time"]),
			Departure: ParseTime(row["departure_time"]),
			Seq:       seq,
		})
	}
	for sid := range ix.stopTimesByStop {
		list := ix.stopTimesByStop[sid]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].EffectiveSec() < list[j].EffectiveSec()
		})
	}

	return ix, nil
}

// weekdayColumns maps time.Weekday indices to calendar.txt day columns.
var weekdayColumns = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// LoadZip reads a GTFS bundle from a zip archive on disk and builds the
// index. Calendar tables are optional; the other tables are required and
// their absence surfaces as a MissingResourceError.
func LoadZip(path string) (*Index, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs: open %s: %w", path, err)
	}
	defer zr.Close()

	var t Tables
	for _, dst := range []struct {
		name     string
		rows     *[]map[string]string
		required bool
	}{
		{"stops.txt", &t.Stops, true},
		{"routes.txt", &t.Routes, true},
		{"trips.txt", &t.Trips, true},
		{"calendar.txt", &t.Calendar, false},
		{"calendar_dates.txt", &t.CalendarDates, false},
		{"stop_times.txt", &t.StopTimes, true},
	} {
		f := findZipEntry(&zr.Reader, dst.name)
		if f == nil {
			if dst.required {
				return nil, &MissingResourceError{Resource: dst.name}
			}
			*dst.rows = []map[string]string{}
			continue
		}
		rows, err := readCSV(f)
		if err != nil {
			return nil, fmt.Errorf("gtfs: parse %s: %w", dst.name, err)
		}
		*dst.rows = rows
	}

	return Build(t)
}

func findZipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// readCSV parses one zipped table into column-name keyed rows. Short rows
// are padded so later column lookups stay in bounds.
func readCSV(f *zip.File) ([]map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// StopByID looks up a stop by its identifier.
func (ix *Index) StopByID(id string) (*models.Stop, bool) {
	s, ok := ix.stopsByID[id]
	return s, ok
}

// TripByID looks up a trip by its identifier.
func (ix *Index) TripByID(id string) (models.Trip, bool) {
	t, ok := ix.tripsByID[id]
	return t, ok
}

// RouteByID looks up a route by its identifier.
func (ix *Index) RouteByID(id string) (models.Route, bool) {
	r, ok := ix.routesByID[id]
	return r, ok
}

// Counts reports index sizes for startup logging.
func (ix *Index) Counts() (stops, routes, trips int) {
	return len(ix.stopsByID), len(ix.routesByID), len(ix.tripsByID)
}

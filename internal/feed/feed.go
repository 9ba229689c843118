package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/stmbus/stm-go/internal/models"
)

const (
	// DefaultTTL keeps decoded feeds long enough to absorb bursts of
	// queries without hammering the upstream rate limit.
	DefaultTTL = 15 * time.Second

	// DefaultTimeout bounds a single upstream fetch. Fetches are not
	// retried; a timeout fails the whole query.
	DefaultTimeout = 10 * time.Second
)

// UpstreamError reports a failed fetch from the live feed source. It is
// recoverable per-query: the caller may retry the whole query later.
type UpstreamError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("feed: fetch %s: HTTP %d", e.URL, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Config holds the feed endpoints and auth token.
type Config struct {
	TripUpdatesURL      string
	VehiclePositionsURL string
	APIKey              string
	TTL                 time.Duration
	Timeout             time.Duration
}

// Client fetches and decodes the two GTFS-realtime feeds, caching each
// decode for a short TTL. Concurrent queries inside the TTL window share
// the cached decode; two queries racing past an expired entry may both
// fetch, which is acceptable duplication at this TTL.
type Client struct {
	cfg        Config
	httpClient *http.Client

	tripMu      sync.RWMutex
	tripUpdates []models.LiveTripUpdate
	tripAt      time.Time

	vehMu    sync.RWMutex
	vehicles []models.LiveVehiclePosition
	vehAt    time.Time

	now func() time.Time
}

// NewClient creates a feed client. Zero TTL or Timeout fall back to the
// package defaults.
func NewClient(cfg Config) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Fetch returns both feeds, issuing the two upstream requests concurrently
// and awaiting them jointly. If either fails the whole fetch fails; there
// is no partial merge.
func (c *Client) Fetch(ctx context.Context) ([]models.LiveTripUpdate, []models.LiveVehiclePosition, error) {
	var (
		tu []models.LiveTripUpdate
		vp []models.LiveVehiclePosition
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tu, err = c.TripUpdates(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		vp, err = c.VehiclePositions(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tu, vp, nil
}

// TripUpdates returns the decoded trip-update feed, cached for the TTL.
func (c *Client) TripUpdates(ctx context.Context) ([]models.LiveTripUpdate, error) {
	c.tripMu.RLock()
	if c.tripUpdates != nil && c.now().Sub(c.tripAt) < c.cfg.TTL {
		cached := c.tripUpdates
		c.tripMu.RUnlock()
		return cached, nil
	}
	c.tripMu.RUnlock()

	fm, err := c.fetchFeed(ctx, c.cfg.TripUpdatesURL)
	if err != nil {
		return nil, err
	}
	decoded := decodeTripUpdates(fm)

	c.tripMu.Lock()
	c.tripUpdates = decoded
	c.tripAt = c.now()
	c.tripMu.Unlock()
	return decoded, nil
}

// VehiclePositions returns the decoded vehicle-position feed, cached for
// the TTL.
func (c *Client) VehiclePositions(ctx context.Context) ([]models.LiveVehiclePosition, error) {
	c.vehMu.RLock()
	if c.vehicles != nil && c.now().Sub(c.vehAt) < c.cfg.TTL {
		cached := c.vehicles
		c.vehMu.RUnlock()
		return cached, nil
	}
	c.vehMu.RUnlock()

	fm, err := c.fetchFeed(ctx, c.cfg.VehiclePositionsURL)
	if err != nil {
		return nil, err
	}
	decoded := decodeVehiclePositions(fm)

	c.vehMu.Lock()
	c.vehicles = decoded
	c.vehAt = c.now()
	c.vehMu.Unlock()
	return decoded, nil
}

func (c *Client) fetchFeed(ctx context.Context, url string) (*gtfsrt.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	req.Header.Set("accept", "application/x-protobuf")
	if c.cfg.APIKey != "" {
		req.Header.Set("apiKey", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}

	var fm gtfsrt.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	return &fm, nil
}

// decodeTripUpdates flattens the protobuf feed into engine-facing rows.
// Entities without a trip-update payload or trip id are skipped per-row.
func decodeTripUpdates(fm *gtfsrt.FeedMessage) []models.LiveTripUpdate {
	out := make([]models.LiveTripUpdate, 0, len(fm.GetEntity()))
	for _, e := range fm.GetEntity() {
		upd := e.GetTripUpdate()
		if upd == nil {
			continue
		}
		tripID := upd.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}
		row := models.LiveTripUpdate{
			TripID:  tripID,
			RouteID: upd.GetTrip().GetRouteId(),
		}
		for _, stu := range upd.GetStopTimeUpdate() {
			if stu.GetStopId() == "" {
				continue
			}
			row.StopTimes = append(row.StopTimes, models.LiveStopTime{
				StopID:    stu.GetStopId(),
				Arrival:   stu.GetArrival().GetTime(),
				Departure: stu.GetDeparture().GetTime(),
			})
		}
		out = append(out, row)
	}
	return out
}

// decodeVehiclePositions flattens the vehicle feed. Entities without a trip
// id or position are skipped; a feed should carry one position per trip.
func decodeVehiclePositions(fm *gtfsrt.FeedMessage) []models.LiveVehiclePosition {
	out := make([]models.LiveVehiclePosition, 0, len(fm.GetEntity()))
	for _, e := range fm.GetEntity() {
		v := e.GetVehicle()
		if v == nil || v.GetPosition() == nil {
			continue
		}
		tripID := v.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}
		row := models.LiveVehiclePosition{
			TripID:    tripID,
			VehicleID: v.GetVehicle().GetId(),
			Lat:       float64(v.GetPosition().GetLatitude()),
			Lon:       float64(v.GetPosition().GetLongitude()),
		}
		if v.GetPosition().Bearing != nil {
			b := float64(v.GetPosition().GetBearing())
			row.Bearing = &b
		}
		if v.OccupancyStatus != nil {
			row.Occupancy = v.GetOccupancyStatus().String()
		}
		out = append(out, row)
	}
	return out
}

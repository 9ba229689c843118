package stm

import (
	"context"
	"time"

	"github.com/stmbus/stm-go/internal/models"
)

// Client defines the query surface exposed upward. Abstracts the in-process
// engine so handlers and tools don't depend on internals.
type Client interface {
	// ResolveStops maps a free-text query to matching boardable stops.
	// An empty slice means "not found" and is a normal outcome.
	ResolveStops(query string) []models.StopSummary

	// InspectStops returns stop grouping metadata for a query.
	InspectStops(query string) []models.StopDetail

	// Arrivals returns the next arrivals for the queried stop, at most max
	// rows, merging live feeds with the static schedule. Returns
	// arrivals.ErrStopNotFound for unknown stops and a feed.UpstreamError
	// when the live source cannot be reached.
	Arrivals(ctx context.Context, query string, max int) (models.ArrivalsResponse, error)
}

// Config holds everything needed to stand up a local client.
type Config struct {
	GTFSZipPath         string
	TripUpdatesURL      string
	VehiclePositionsURL string
	APIKey              string
	FeedTTL             time.Duration
	FetchTimeout        time.Duration
}

// DefaultConfig returns the STM production endpoints with the standard
// cache and timeout windows.
func DefaultConfig() Config {
	const base = "https://api.stm.info/pub/od/gtfs-rt/ic/v2"
	return Config{
		GTFSZipPath:         "data/gtfs_stm.zip",
		TripUpdatesURL:      base + "/tripUpdates",
		VehiclePositionsURL: base + "/vehiclePositions",
		FeedTTL:             15 * time.Second,
		FetchTimeout:        10 * time.Second,
	}
}

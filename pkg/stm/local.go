package stm

import (
	"context"
	"fmt"

	"github.com/stmbus/stm-go/internal/arrivals"
	"github.com/stmbus/stm-go/internal/feed"
	"github.com/stmbus/stm-go/internal/gtfs"
	"github.com/stmbus/stm-go/internal/models"
)

// LocalClient implements Client against an in-process index and engine.
type LocalClient struct {
	index  *gtfs.Index
	engine *arrivals.Engine
}

// NewLocal loads the static schedule once and wires the merge engine over
// it. A missing required GTFS table surfaces here, before any traffic is
// served.
func NewLocal(cfg Config) (*LocalClient, error) {
	index, err := gtfs.LoadZip(cfg.GTFSZipPath)
	if err != nil {
		return nil, fmt.Errorf("stm: load schedule: %w", err)
	}

	feeds := feed.NewClient(feed.Config{
		TripUpdatesURL:      cfg.TripUpdatesURL,
		VehiclePositionsURL: cfg.VehiclePositionsURL,
		APIKey:              cfg.APIKey,
		TTL:                 cfg.FeedTTL,
		Timeout:             cfg.FetchTimeout,
	})

	return &LocalClient{
		index:  index,
		engine: arrivals.NewEngine(index, feeds),
	}, nil
}

// Index exposes the loaded static index for startup logging.
func (c *LocalClient) Index() *gtfs.Index { return c.index }

func (c *LocalClient) ResolveStops(query string) []models.StopSummary {
	return c.engine.ResolveStops(query)
}

func (c *LocalClient) InspectStops(query string) []models.StopDetail {
	return c.engine.InspectStops(query)
}

func (c *LocalClient) Arrivals(ctx context.Context, query string, max int) (models.ArrivalsResponse, error) {
	return c.engine.Arrivals(ctx, query, max)
}

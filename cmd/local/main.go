package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/stmbus/stm-go/internal/gtfs"
	"github.com/stmbus/stm-go/pkg/stm"
)

func main() {
	var (
		apiKey  = flag.String("api-key", "", "STM API key")
		gtfsZip = flag.String("gtfs", "data/gtfs_stm.zip", "GTFS static zip path")
		stop    = flag.String("stop", "", "Stop code, id or name to query")
		max     = flag.Int("max", 5, "Maximum arrivals to show")
	)
	flag.Parse()

	_ = godotenv.Load()
	if *apiKey == "" {
		*apiKey = os.Getenv("STM_API_KEY")
	}
	if *apiKey == "" {
		slog.Error("STM API key required (use -api-key flag or STM_API_KEY env var)")
		os.Exit(1)
	}
	if *stop == "" {
		slog.Error("Stop query required (use -stop)")
		os.Exit(1)
	}

	cfg := stm.DefaultConfig()
	cfg.GTFSZipPath = *gtfsZip
	cfg.APIKey = *apiKey

	client, err := stm.NewLocal(cfg)
	if err != nil {
		slog.Error("Failed to create STM client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Arrivals(ctx, *stop, *max)
	if err != nil {
		slog.Error("Failed to get arrivals", "stop", *stop, "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n%s", resp.Stop.Name)
	if resp.Stop.Code != "" {
		fmt.Printf(" (%s)", resp.Stop.Code)
	}
	fmt.Printf(" - source: %s\n", resp.Source)
	if resp.Note != "" {
		fmt.Printf("  note: %s\n", resp.Note)
	}

	if len(resp.Arrivals) == 0 {
		fmt.Println("  no upcoming departures")
		return
	}
	for _, a := range resp.Arrivals {
		line := fmt.Sprintf("  %-6s %-28s in %s", a.Route, a.Headsign, gtfs.ClockString(a.ETASeconds))
		if a.Vehicle != nil {
			line += fmt.Sprintf("  (bus %dm away)", a.Vehicle.DistanceMToStop)
		}
		fmt.Println(line)
	}
	fmt.Printf("\nLast updated: %s\n", resp.LastUpdated.Format("3:04:05 PM"))
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/stmbus/stm-go/api/handlers"
	"github.com/stmbus/stm-go/internal/config"
	"github.com/stmbus/stm-go/pkg/stm"
)

func main() {
	var (
		port       = flag.String("port", "3000", "Server port")
		apiKey     = flag.String("api-key", "", "STM API key")
		gtfsZip    = flag.String("gtfs", "data/gtfs_stm.zip", "GTFS static zip path")
		configPath = flag.String("config", "", "Optional yaml config file")
	)
	flag.Parse()

	cfg := stm.DefaultConfig()
	cfg.GTFSZipPath = *gtfsZip
	cfg.APIKey = *apiKey

	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg.GTFSZipPath = fileCfg.GTFS.ZipPath
		cfg.TripUpdatesURL = fileCfg.Feeds.TripUpdatesURL
		cfg.VehiclePositionsURL = fileCfg.Feeds.VehiclePositionsURL
		if fileCfg.Feeds.APIKey != "" {
			cfg.APIKey = fileCfg.Feeds.APIKey
		}
		if fileCfg.Feeds.TTLSeconds > 0 {
			cfg.FeedTTL = time.Duration(fileCfg.Feeds.TTLSeconds) * time.Second
		}
		if fileCfg.Feeds.TimeoutSeconds > 0 {
			cfg.FetchTimeout = time.Duration(fileCfg.Feeds.TimeoutSeconds) * time.Second
		}
		*port = strconv.Itoa(fileCfg.Server.Port)
	} else {
		_ = godotenv.Load()
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("STM_API_KEY")
		}
		if zip := os.Getenv("GTFS_ZIP"); zip != "" && *gtfsZip == "data/gtfs_stm.zip" {
			cfg.GTFSZipPath = zip
		}
		if p := os.Getenv("PORT"); p != "" {
			*port = p
		}
	}
	if cfg.APIKey == "" {
		log.Fatal("STM API key required (use -api-key flag or STM_API_KEY env var)")
	}

	log.Printf("Loading GTFS from %s", cfg.GTFSZipPath)
	client, err := stm.NewLocal(cfg)
	if err != nil {
		log.Fatalf("Failed to create STM client: %v", err)
	}
	stops, routes, trips := client.Index().Counts()
	log.Printf("GTFS loaded: stops=%d, routes=%d, trips=%d", stops, routes, trips)

	r := mux.NewRouter()
	h := handlers.NewHandler(client)
	h.RegisterRoutes(r)

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

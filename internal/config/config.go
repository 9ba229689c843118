package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// GTFSConfig locates the static schedule bundle.
type GTFSConfig struct {
	ZipPath string `yaml:"zipPath" validate:"required"`
}

// FeedsConfig holds the realtime feed endpoints and auth token. The API
// key is supplied out of band (env), never in the yaml file.
type FeedsConfig struct {
	TripUpdatesURL      string `yaml:"tripUpdatesURL" validate:"required,url"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"required,url"`
	APIKey              string `yaml:"-"`
	TTLSeconds          int    `yaml:"ttlSeconds" validate:"gte=0"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds" validate:"gte=0"`
}

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	GTFS   GTFSConfig   `yaml:"gtfs"`
	Feeds  FeedsConfig  `yaml:"feeds"`
}

// Load reads the yaml config file, applies environment overrides, and
// validates the result. A .env file next to the process is honored if
// present. PORT, GTFS_ZIP and STM_API_KEY override the file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("STM_API_KEY"); key != "" {
		c.Feeds.APIKey = key
	}
	if zip := os.Getenv("GTFS_ZIP"); zip != "" {
		c.GTFS.ZipPath = zip
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}

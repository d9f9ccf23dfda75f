// Package config loads the catalog's environment-driven settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment-driven settings for the catalog service.
type Config struct {
	Env            string        // Deployment environment (dev, prod)
	Addr           string        // HTTP listen address
	DBPath         string        // SQLite database file
	LogLevel       string        // hclog level name
	LogJSON        bool          // Emit JSON log lines
	WatchDirs      []string      // Folders watched for new movie files
	RescanInterval time.Duration // Periodic rescan of WatchDirs, 0 disables
	WriteQueueSize int           // Capacity of the background write queue
	FFProbePath    string        // ffprobe executable
	CacheSize      int           // Person/genre reference cache entries
	EventRetention time.Duration // Age after which movie events are pruned, 0 keeps them

	TMDBAPIKey string
	OMDBAPIKey string
	OMDBURL    string
	WebRPS     float64 // Requests per second allowed per web source
}

// Default configuration values used when environment variables are not set
const (
	defaultEnv            = "dev"
	defaultAddr           = ":8080"
	defaultDBPath         = "movies.db"
	defaultLogLevel       = "info"
	defaultRescanInterval = 30 * time.Minute
	defaultWriteQueueSize = 256
	defaultFFProbePath    = "ffprobe"
	defaultCacheSize      = 1024
	defaultEventRetention = 365 * 24 * time.Hour
	defaultOMDBURL        = "https://www.omdbapi.com/"
	defaultWebRPS         = 4
)

// LoadDotEnv loads .env and then .env.local when they exist. Variables that
// are already set in the process environment are never overridden.
func LoadDotEnv() error {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads environment variables and produces a Config.
// Malformed numeric or duration values are reported as errors.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("MOVIES_ENV", defaultEnv),
		Addr:        getEnv("MOVIES_ADDR", defaultAddr),
		DBPath:      getEnv("MOVIES_DB_PATH", defaultDBPath),
		LogLevel:    getEnv("MOVIES_LOG_LEVEL", defaultLogLevel),
		FFProbePath: getEnv("MOVIES_FFPROBE_PATH", defaultFFProbePath),
		TMDBAPIKey:  os.Getenv("TMDB_API_KEY"),
		OMDBAPIKey:  os.Getenv("OMDB_API_KEY"),
		OMDBURL:     getEnv("OMDB_URL", defaultOMDBURL),
	}

	var err error
	if cfg.LogJSON, err = boolEnv("MOVIES_LOG_JSON", false); err != nil {
		return cfg, err
	}
	if cfg.RescanInterval, err = durationEnv("MOVIES_RESCAN_INTERVAL", defaultRescanInterval); err != nil {
		return cfg, err
	}
	if cfg.EventRetention, err = durationEnv("MOVIES_EVENT_RETENTION", defaultEventRetention); err != nil {
		return cfg, err
	}
	if cfg.WriteQueueSize, err = intEnv("MOVIES_WRITE_QUEUE_SIZE", defaultWriteQueueSize); err != nil {
		return cfg, err
	}
	if cfg.CacheSize, err = intEnv("MOVIES_CACHE_SIZE", defaultCacheSize); err != nil {
		return cfg, err
	}
	if cfg.WebRPS, err = floatEnv("MOVIES_WEB_RPS", defaultWebRPS); err != nil {
		return cfg, err
	}

	if dirs, exists := os.LookupEnv("MOVIES_WATCH_DIRS"); exists {
		for _, dir := range strings.Split(dirs, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				cfg.WatchDirs = append(cfg.WatchDirs, dir)
			}
		}
	}

	if cfg.WriteQueueSize <= 0 {
		return cfg, fmt.Errorf("MOVIES_WRITE_QUEUE_SIZE must be positive, got %d", cfg.WriteQueueSize)
	}
	if cfg.WebRPS <= 0 {
		return cfg, fmt.Errorf("MOVIES_WEB_RPS must be positive, got %v", cfg.WebRPS)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return fallback, fmt.Errorf("invalid %s %q: negative duration", key, v)
	}
	return d, nil
}

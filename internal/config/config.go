package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingMapToken is reported when MAP_TOKEN is unset. The process still
// starts; the scene endpoints answer 503 until it is configured.
var ErrMissingMapToken = errors.New("MAP_TOKEN is not configured; the map cannot be rendered")

// Config holds process-wide settings, fixed at startup
type Config struct {
	Port       string
	APIBaseURL string
	MapToken   string
	DBPath     string // empty disables the run journal
	JWTSecret  string // empty disables auth

	TickInterval     time.Duration
	PlaybackSpeed    float64
	BackendTimeout   time.Duration
	RouteConcurrency int

	KafkaBrokers       []string // empty disables the Kafka publisher
	KafkaSnapshotTopic string

	RateLimit    int // refreshes per minute per client IP
	StationsFile string
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Port:       getString("PORT", ":8080"),
		APIBaseURL: getString("API_BASE_URL", "http://localhost:8000"),
		MapToken:   os.Getenv("MAP_TOKEN"),
		DBPath:     getStringAllowEmpty("DB_PATH", "./data/engine.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		TickInterval:     getDuration("TICK_INTERVAL", 100*time.Millisecond),
		PlaybackSpeed:    getFloat("PLAYBACK_SPEED", 1),
		BackendTimeout:   getDuration("BACKEND_TIMEOUT", 10*time.Second),
		RouteConcurrency: getInt("ROUTE_CONCURRENCY", 8),

		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaSnapshotTopic: getString("KAFKA_SNAPSHOT_TOPIC", "engine.context-snapshots"),

		RateLimit:    getInt("RATE_LIMIT", 30),
		StationsFile: os.Getenv("STATIONS_FILE"),
	}
}

// Validate reports configuration problems that degrade the service
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MapToken) == "" {
		return ErrMissingMapToken
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getStringAllowEmpty distinguishes an unset variable from one set to ""
func getStringAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[Config] Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[Config] Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[Config] Warning: invalid %s=%q, using %v", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

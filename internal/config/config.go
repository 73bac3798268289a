package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration errors
var (
	ErrBadThreshold = errors.New("threshold must be a finite number")
	ErrBadWindow    = errors.New("slo window must be positive")
	ErrBadWorkers   = errors.New("worker count must be positive")
	ErrMissingURL   = errors.New("weather source url is not set")
	ErrMissingKey   = errors.New("weather source api key is not set")
)

// Default coordinates point at the datacenter in Ridgewood, NY.
const (
	DefaultLat = 40.7036
	DefaultLon = -73.8961
)

// Config holds runtime configuration for the monitor.
type Config struct {
	// Threshold in fahrenheit above which a sample is breaching.
	Threshold float64
	// Window is how long a condition must persist before notifying.
	Window time.Duration
	// Workers is the number of concurrent polling loops (and permits).
	Workers int
	// Cooldown is the pause taken when the permit pool is saturated.
	Cooldown time.Duration
	// PollInterval is the expected cadence of one worker's polls,
	// used only to derive MinSamples.
	PollInterval time.Duration
	// MinSamples is the density floor: the window only counts as
	// confirmed once more than this many samples landed in it.
	MinSamples int
	// NotifyEachWindow re-fires a breach notification every full window
	// while the breach persists. False notifies once per incident.
	NotifyEachWindow bool

	// Geolocation of the monitored site.
	Lat float64
	Lon float64

	// Weather source (OpenWeatherMap-compatible).
	WeatherURL string
	WeatherKey string

	// Notification sink: log, slack or kafka.
	Sink            string
	SlackToken      string
	SlackWebhookURL string
	SlackChannel    string
	KafkaBrokers    []string
	KafkaTopic      string

	// OpsAddr is the listen address for /health, /stats and /metrics.
	OpsAddr string
}

// FromEnv builds a Config from the environment, honoring a .env file if
// one is present. Missing variables fall back to defaults.
func FromEnv() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Threshold:        envFloat("THRESHOLD_TEMP", 90),
		Window:           time.Duration(envInt("SLO_TEMP", 300)) * time.Second,
		Workers:          envInt("SEMAPHORES", 2),
		Cooldown:         time.Duration(envInt("POLL_COOLDOWN", 10)) * time.Second,
		PollInterval:     time.Duration(envInt("POLL_INTERVAL", 10)) * time.Second,
		NotifyEachWindow: envBool("NOTIFY_EACH_WINDOW", true),
		Lat:              DefaultLat,
		Lon:              DefaultLon,
		WeatherURL:       os.Getenv("OPENWEATHERMAP_URL"),
		WeatherKey:       os.Getenv("OPENWEATHERMAP_KEY"),
		Sink:             envString("NOTIFY_SINK", "log"),
		SlackToken:       os.Getenv("SLACK_TOKEN"),
		SlackWebhookURL:  os.Getenv("SLACK_WEBHOOK_URL"),
		SlackChannel:     envString("SLACK_CHANNEL", "testing"),
		KafkaTopic:       envString("KAFKA_TOPIC", "sensor-alerts"),
		OpsAddr:          envString("OPS_ADDR", ":8080"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	// Density floor defaults to the expected sample count for one full
	// window at steady polling, minus one.
	cfg.MinSamples = envInt("MIN_SAMPLES", cfg.DeriveMinSamples())

	return cfg
}

// DeriveMinSamples computes workers * (window / pollInterval) - 1.
func (c *Config) DeriveMinSamples() int {
	if c.PollInterval <= 0 {
		return 0
	}
	n := c.Workers*int(c.Window/c.PollInterval) - 1
	if n < 0 {
		n = 0
	}
	return n
}

// Validate checks fields needed by the long-running mode.
func (c *Config) Validate() error {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return ErrBadThreshold
	}
	if c.Window <= 0 {
		return ErrBadWindow
	}
	if c.Workers <= 0 {
		return ErrBadWorkers
	}
	if c.WeatherURL == "" {
		return ErrMissingURL
	}
	if c.WeatherKey == "" {
		return ErrMissingKey
	}
	if c.Sink == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("sink kafka: KAFKA_BROKERS is not set")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/blissend/sensor/internal/config"
	"github.com/blissend/sensor/internal/models"
)

type captureSink struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (c *captureSink) Send(ctx context.Context, n models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testConfig(url string) *config.Config {
	return &config.Config{
		Threshold:        90,
		Window:           300 * time.Second,
		Workers:          2,
		Cooldown:         10 * time.Second,
		PollInterval:     10 * time.Second,
		MinSamples:       59,
		NotifyEachWindow: true,
		Lat:              config.DefaultLat,
		Lon:              config.DefaultLon,
		WeatherURL:       url,
		WeatherKey:       "test-key",
		Sink:             "log",
		OpsAddr:          ":0",
	}
}

func weatherServer(t *testing.T, temp float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/2.5/weather":
			json.NewEncoder(w).Encode(map[string]any{
				"main": map[string]any{"temp": temp},
				"name": "Ridgewood",
			})
		case "/geo/1.0/zip":
			json.NewEncoder(w).Encode(map[string]any{"lat": 41.0, "lon": -74.0})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestMonitorOnceBreach(t *testing.T) {
	ts := weatherServer(t, 95.2)
	defer ts.Close()

	m, err := New(testConfig(ts.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := &captureSink{}
	m.sink = sink

	if err := m.Once(context.Background()); err != nil {
		t.Fatalf("Once returned error: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("expected one notification, got %d", sink.count())
	}
}

func TestMonitorOnceBelowThreshold(t *testing.T) {
	ts := weatherServer(t, 72.0)
	defer ts.Close()

	m, err := New(testConfig(ts.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := &captureSink{}
	m.sink = sink

	if err := m.Once(context.Background()); err != nil {
		t.Fatalf("Once returned error: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("expected no notification below threshold, got %d", sink.count())
	}
}

func TestMonitorOncePollFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	m, err := New(testConfig(ts.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Once(context.Background()); err == nil {
		t.Error("expected error on poll failure")
	}
}

func TestMonitorInvalidConfig(t *testing.T) {
	cfg := testConfig("")
	if _, err := New(cfg); err == nil {
		t.Error("expected error for missing weather url")
	}
}

func TestMonitorSetLocationFromZip(t *testing.T) {
	ts := weatherServer(t, 72.0)
	defer ts.Close()

	cfg := testConfig(ts.URL)
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.SetLocationFromZip(context.Background(), "07030"); err != nil {
		t.Fatalf("SetLocationFromZip: %v", err)
	}
	if cfg.Lat != 41.0 || cfg.Lon != -74.0 {
		t.Errorf("coordinates not updated: %v, %v", cfg.Lat, cfg.Lon)
	}
}

func TestMonitorGeocodeFailureKeepsCoordinates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.SetLocationFromZip(context.Background(), "00000"); err == nil {
		t.Fatal("expected geocode error")
	}
	if cfg.Lat != config.DefaultLat || cfg.Lon != config.DefaultLon {
		t.Errorf("coordinates changed on failure: %v, %v", cfg.Lat, cfg.Lon)
	}
}

func TestMonitorHandlers(t *testing.T) {
	ts := weatherServer(t, 72.0)
	defer ts.Close()

	m, err := New(testConfig(ts.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	m.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected healthy, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.statsHandler(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats returned %d", rec.Code)
	}
	var stats struct {
		Tracker struct {
			Phase string `json:"phase"`
		} `json:"tracker"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Tracker.Phase != "nominal" {
		t.Errorf("expected nominal phase, got %q", stats.Tracker.Phase)
	}
}

func TestMonitorRunShutdown(t *testing.T) {
	ts := weatherServer(t, 72.0)
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.OpsAddr = "127.0.0.1:0"
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not shut down")
	}
}

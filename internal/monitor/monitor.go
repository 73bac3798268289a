// Package monitor wires the weather client, sampler, tracker and
// notification sink together and owns the ops HTTP surface.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blissend/sensor/internal/config"
	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/models"
	"github.com/blissend/sensor/internal/notify"
	"github.com/blissend/sensor/internal/sampler"
	"github.com/blissend/sensor/internal/tracker"
	"github.com/blissend/sensor/internal/weather"
)

// Monitor is the high-level coordinator for polling, tracking and alerting.
type Monitor struct {
	cfg     *config.Config
	client  *weather.Client
	sink    notify.Sink
	tracker *tracker.Tracker
	sampler *sampler.Sampler

	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Monitor from validated config.
func New(cfg *config.Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sink, err := notify.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build sink: %w", err)
	}

	m := &Monitor{
		cfg:    cfg,
		client: weather.New(cfg.WeatherURL, cfg.WeatherKey),
		sink:   sink,
	}

	m.tracker = tracker.New(tracker.Options{
		Threshold:        cfg.Threshold,
		Window:           cfg.Window,
		MinSamples:       cfg.MinSamples,
		NotifyEachWindow: cfg.NotifyEachWindow,
	}, sink)

	m.sampler = sampler.New(sampler.Config{
		Workers:  cfg.Workers,
		Cooldown: cfg.Cooldown,
		Poll: func(ctx context.Context) (models.Sample, error) {
			return m.client.Current(ctx, cfg.Lat, cfg.Lon)
		},
		Evaluate: m.tracker.Evaluate,
	})

	return m, nil
}

// Run starts the ops server and the polling workers and blocks until the
// context is cancelled, then shuts down gracefully.
func (m *Monitor) Run(ctx context.Context) error {
	log := logger.WithComponent("monitor")
	log.Info().
		Float64("threshold", m.cfg.Threshold).
		Dur("window", m.cfg.Window).
		Int("workers", m.cfg.Workers).
		Int("min_samples", m.cfg.MinSamples).
		Str("sink", m.cfg.Sink).
		Msg("monitor starting")

	m.initHTTPServer()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		log.Info().Str("addr", m.cfg.OpsAddr).Msg("starting ops server")
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server error")
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reportStats(ctx)
	}()

	samplerDone := make(chan struct{})
	go func() {
		m.sampler.Run(ctx)
		close(samplerDone)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return m.shutdown(samplerDone)
}

// Once performs a single blocking poll and notifies immediately if the
// threshold is breached. It bypasses the sampler and tracker entirely.
func (m *Monitor) Once(ctx context.Context) error {
	log := logger.WithComponent("monitor")

	sample, err := m.client.Current(ctx, m.cfg.Lat, m.cfg.Lon)
	if err != nil {
		return fmt.Errorf("poll: %w", err)
	}

	if sample.Value > m.cfg.Threshold {
		note := fmt.Sprintf("Threshold of %.1fF reached for %s (%.1fF)",
			m.cfg.Threshold, sample.Label, sample.Value)
		log.Info().Msg(note)
		n := models.NewNotification(models.SeverityBreach, note, time.Now())
		if err := m.sink.Send(ctx, n); err != nil {
			log.Error().Err(err).Msg("notification send failed")
		}
	} else {
		log.Info().Msgf("Threshold of %.1fF NOT reached for %s (%.1fF)",
			m.cfg.Threshold, sample.Label, sample.Value)
	}
	return nil
}

// SetLocationFromZip resolves a zip code and points the monitor at it.
func (m *Monitor) SetLocationFromZip(ctx context.Context, zip string) error {
	lat, lon, err := m.client.GeocodeZip(ctx, zip)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", zip, err)
	}
	m.cfg.Lat, m.cfg.Lon = lat, lon
	log := logger.WithComponent("monitor")
	log.Info().
		Str("zip", zip).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("location set from zip")
	return nil
}

// initHTTPServer sets up /health, /stats and /metrics.
func (m *Monitor) initHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", m.healthHandler)
	mux.HandleFunc("/stats", m.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	m.httpServer = &http.Server{
		Addr:         m.cfg.OpsAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown stops the ops server, waits for workers, closes the sink.
func (m *Monitor) shutdown(samplerDone <-chan struct{}) error {
	log := logger.WithComponent("monitor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping ops server")
	if err := m.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server shutdown error")
	}

	select {
	case <-samplerDone:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout - forcing exit")
	}

	if err := m.sink.Close(); err != nil {
		log.Error().Err(err).Msg("sink close error")
	}

	m.wg.Wait()
	log.Info().Msg("monitor stopped gracefully")
	return nil
}

// reportStats periodically logs sampler and tracker state.
func (m *Monitor) reportStats(ctx context.Context) {
	log := logger.WithComponent("monitor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := m.sampler.Stats()
			snap := m.tracker.Snapshot()
			log.Info().
				Uint64("polled", stats.Polled).
				Uint64("failed", stats.Failed).
				Str("phase", snap.Phase).
				Int("breach_count", snap.BreachCount).
				Bool("alert_active", snap.AlertActive).
				Msg("stats")
		}
	}
}

// healthHandler probes the weather source.
func (m *Monitor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := m.client.Current(ctx, m.cfg.Lat, m.cfg.Lon); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current sampler and tracker state.
func (m *Monitor) statsHandler(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Sampler sampler.Stats    `json:"sampler"`
		Tracker tracker.Snapshot `json:"tracker"`
	}{
		Sampler: m.sampler.Stats(),
		Tracker: m.tracker.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log := logger.WithComponent("monitor")
		log.Error().Err(err).Msg("encode stats")
	}
}

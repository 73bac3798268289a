package main

import (
	"flag"
	"testing"
	"time"

	"github.com/blissend/sensor/internal/config"
)

func testFlagSet(t *testing.T, args ...string) (*flag.FlagSet, int, float64) {
	t.Helper()
	fs := flag.NewFlagSet("sensor", flag.ContinueOnError)
	concurrency := fs.Int("concurrency", 0, "")
	threshold := fs.Float64("threshold", 0, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return fs, *concurrency, *threshold
}

func baseConfig() *config.Config {
	return &config.Config{
		Threshold:    90,
		Window:       300 * time.Second,
		Workers:      2,
		PollInterval: 10 * time.Second,
		MinSamples:   59,
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := baseConfig()
	fs, c, th := testFlagSet(t, "-concurrency", "4", "-threshold", "85.5")
	applyFlagOverrides(cfg, fs, c, th)

	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.Threshold != 85.5 {
		t.Errorf("expected threshold 85.5, got %v", cfg.Threshold)
	}
	// 4 workers * (300s / 10s) - 1
	if cfg.MinSamples != 119 {
		t.Errorf("expected rederived density floor 119, got %d", cfg.MinSamples)
	}
}

func TestApplyFlagOverridesZeroThreshold(t *testing.T) {
	cfg := baseConfig()
	fs, c, th := testFlagSet(t, "-threshold", "0")
	applyFlagOverrides(cfg, fs, c, th)

	if cfg.Threshold != 0 {
		t.Errorf("explicit --threshold 0 was ignored, got %v", cfg.Threshold)
	}
	if cfg.Workers != 2 {
		t.Errorf("unset concurrency changed workers to %d", cfg.Workers)
	}
}

func TestApplyFlagOverridesUnsetKeepsEnv(t *testing.T) {
	cfg := baseConfig()
	fs, c, th := testFlagSet(t)
	applyFlagOverrides(cfg, fs, c, th)

	if cfg.Threshold != 90 || cfg.Workers != 2 || cfg.MinSamples != 59 {
		t.Errorf("unset flags mutated config: %+v", cfg)
	}
}

func TestApplyFlagOverridesEnvFloorWins(t *testing.T) {
	t.Setenv("MIN_SAMPLES", "7")
	cfg := baseConfig()
	cfg.MinSamples = 7
	fs, c, th := testFlagSet(t, "-concurrency", "4")
	applyFlagOverrides(cfg, fs, c, th)

	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.MinSamples != 7 {
		t.Errorf("explicit MIN_SAMPLES was clobbered: %d", cfg.MinSamples)
	}
}

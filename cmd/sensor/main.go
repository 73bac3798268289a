package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blissend/sensor/internal/config"
	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/monitor"
)

func main() {
	var (
		verbose     = flag.Bool("verbose", false, "spit out debug information")
		zip         = flag.String("zip", "", "set geolocation from zipcode")
		concurrency = flag.Int("concurrency", 0, "limit concurrent polls to this")
		threshold   = flag.Float64("threshold", 0, "temperature threshold in fahrenheit")
		once        = flag.Bool("once", false, "run the monitor once")
		forever     = flag.Bool("forever", false, "run the monitor forever")
	)
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"), *verbose)

	cfg := config.FromEnv()
	applyFlagOverrides(cfg, flag.CommandLine, *concurrency, *threshold)

	m, err := monitor.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensor: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *zip != "" {
		if err := m.SetLocationFromZip(ctx, *zip); err != nil {
			logger.Logger.Error().Err(err).Msg("failed to set location")
			if *once {
				os.Exit(1)
			}
			// The long-running mode keeps the default coordinates.
		}
	}

	switch {
	case *once:
		if err := m.Once(ctx); err != nil {
			logger.Logger.Error().Err(err).Msg("one-shot poll failed")
			os.Exit(1)
		}

	case *forever:
		// run monitor in background
		errCh := make(chan error, 1)
		go func() {
			errCh <- m.Run(ctx)
		}()

		// wait for termination signals
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigs:
			logger.Logger.Info().Msg("shutting down")
			cancel()
			select {
			case <-errCh:
			case <-time.After(20 * time.Second):
				logger.Logger.Warn().Msg("shutdown timeout")
			}
		case err := <-errCh:
			if err != nil {
				logger.Logger.Error().Err(err).Msg("monitor exited")
				os.Exit(1)
			}
		}

	default:
		flag.Usage()
	}
}

// applyFlagOverrides layers explicitly-set flags over the env-built
// config. Visit only reports flags the user actually passed, so
// --threshold 0 is an explicit value, not an unset default.
func applyFlagOverrides(cfg *config.Config, fs *flag.FlagSet, concurrency int, threshold float64) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["concurrency"] && concurrency > 0 {
		cfg.Workers = concurrency
		if os.Getenv("MIN_SAMPLES") == "" {
			cfg.MinSamples = cfg.DeriveMinSamples()
		}
	}
	if set["threshold"] {
		cfg.Threshold = threshold
	}
}

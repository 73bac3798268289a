// Package sampler runs a bounded pool of polling workers against the
// measurement source. A weighted semaphore caps outstanding requests at
// the worker count; there is no queue, the permit pool is the only
// flow-control mechanism.
package sampler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/metrics"
	"github.com/blissend/sensor/internal/models"
)

// PollFunc fetches one measurement. Errors are transient and non-fatal.
type PollFunc func(ctx context.Context) (models.Sample, error)

// EvaluateFunc consumes one successful sample.
type EvaluateFunc func(ctx context.Context, sample models.Sample)

// Config holds sampler configuration
type Config struct {
	Workers  int
	Cooldown time.Duration
	Poll     PollFunc
	Evaluate EvaluateFunc
}

// Sampler owns the permit pool and the polling loops.
type Sampler struct {
	workers  int
	cooldown time.Duration
	poll     PollFunc
	evaluate EvaluateFunc

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	polled atomic.Uint64
	failed atomic.Uint64
}

// New creates a Sampler with one permit per worker.
func New(cfg Config) *Sampler {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	return &Sampler{
		workers:  cfg.Workers,
		cooldown: cfg.Cooldown,
		poll:     cfg.Poll,
		evaluate: cfg.Evaluate,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Run starts the polling loops and blocks until the context is cancelled
// and every worker has exited.
func (s *Sampler) Run(ctx context.Context) {
	log := logger.WithComponent("sampler")
	log.Info().
		Int("workers", s.workers).
		Dur("cooldown", s.cooldown).
		Msg("starting polling workers")

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Wait()
	log.Info().Msg("polling workers stopped")
}

// worker is one polling loop. It runs until cancellation; poll errors
// and even panics in poll or evaluate are logged and skipped, never
// fatal: the loop must survive anything the collaborators throw at it.
func (s *Sampler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	log := logger.WithWorker(id)
	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	for ctx.Err() == nil {
		s.iterate(ctx, log)
	}
}

// iterate runs one poll cycle. The permit acquired here is released on
// every exit path, including a recovered panic, so a misbehaving poll or
// evaluate can never shrink the pool.
func (s *Sampler) iterate(ctx context.Context, log zerolog.Logger) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}

	released := false
	release := func() {
		if !released {
			released = true
			s.sem.Release(1)
		}
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("sampler").Inc()
		}
		release()
	}()

	log.Debug().Msg("making measurement call")
	start := time.Now()
	sample, err := s.poll(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	// When every permit is held at the instant the call completes,
	// hold ours through a cooldown so the pool stops hammering the
	// source while it is saturated.
	if s.saturated() {
		log.Debug().Dur("cooldown", s.cooldown).Msg("concurrency limit reached, waiting")
		metrics.SaturationWaits.Inc()
		if !sleep(ctx, s.cooldown) {
			return
		}
	}
	release()

	if err != nil {
		s.failed.Add(1)
		metrics.PollsTotal.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Msg("poll failed")
		return
	}

	s.polled.Add(1)
	metrics.PollsTotal.WithLabelValues("success").Inc()
	s.evaluate(ctx, sample)
}

// saturated reports whether no permit is currently free.
func (s *Sampler) saturated() bool {
	if s.sem.TryAcquire(1) {
		s.sem.Release(1)
		return false
	}
	return true
}

// sleep waits for d or until ctx is cancelled. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stats returns poll counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Polled: s.polled.Load(),
		Failed: s.failed.Load(),
	}
}

// Stats holds sampler counters
type Stats struct {
	Polled uint64 `json:"polled"`
	Failed uint64 `json:"failed"`
}

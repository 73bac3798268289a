// Package tracker converts a stream of temperature samples into debounced
// alert notifications. A single transient reading never flips the alert;
// only a density of breaching samples sustained across a full SLO window
// does, and the same applies to clearing.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/metrics"
	"github.com/blissend/sensor/internal/models"
	"github.com/blissend/sensor/internal/notify"
)

// Phase is the tracker's position in the breach lifecycle.
type Phase int

const (
	// PhaseNominal: no breach window open.
	PhaseNominal Phase = iota
	// PhaseWarning: breaching samples are accumulating toward a window.
	PhaseWarning
	// PhaseClearing: clear samples are accumulating toward a reset.
	PhaseClearing
)

func (p Phase) String() string {
	switch p {
	case PhaseNominal:
		return "nominal"
	case PhaseWarning:
		return "warning"
	case PhaseClearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// Options configure one Tracker.
type Options struct {
	// Threshold in fahrenheit; a sample strictly above it is breaching.
	Threshold float64
	// Window is how long a condition must persist before notifying.
	Window time.Duration
	// MinSamples is the density floor: a window is confirmed only once
	// more than MinSamples samples were counted in it.
	MinSamples int
	// NotifyEachWindow re-fires a breach notification for every full
	// window the breach persists. False notifies once per incident.
	NotifyEachWindow bool
}

// Tracker is the SLO state machine for one monitored target. Evaluate is
// the only mutation path and is serialized by a mutex, so samples from
// any number of polling workers can be fed in concurrently.
type Tracker struct {
	opts Options
	sink notify.Sink
	now  func() time.Time

	mu          sync.Mutex
	phase       Phase
	windowStart time.Time
	breachCount int
	alertActive bool

	// sendMu is acquired while mu is still held whenever a transition
	// emits, so deliveries reach the sink in emission order even though
	// the send itself happens outside mu.
	sendMu sync.Mutex
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	Phase       string    `json:"phase"`
	WindowStart time.Time `json:"window_start"`
	BreachCount int       `json:"breach_count"`
	AlertActive bool      `json:"alert_active"`
}

// New creates a Tracker in the nominal phase.
func New(opts Options, sink notify.Sink) *Tracker {
	if opts.Window <= 0 {
		opts.Window = 300 * time.Second
	}
	return &Tracker{
		opts: opts,
		sink: sink,
		now:  time.Now,
	}
}

// Evaluate classifies one sample and advances the state machine,
// emitting at most one notification. Malformed samples are rejected
// before any state is touched.
func (t *Tracker) Evaluate(ctx context.Context, sample models.Sample) {
	log := logger.WithComponent("tracker")

	if err := sample.Validate(); err != nil {
		log.Warn().Err(err).Msg("rejecting malformed sample")
		metrics.SamplesEvaluated.WithLabelValues("rejected").Inc()
		return
	}

	breaching := sample.Value > t.opts.Threshold

	t.mu.Lock()
	var emit *models.Notification
	if breaching {
		metrics.SamplesEvaluated.WithLabelValues("breaching").Inc()
		emit = t.onBreaching(sample)
	} else {
		metrics.SamplesEvaluated.WithLabelValues("clear").Inc()
		emit = t.onClear(sample)
	}
	metrics.TrackerPhase.Set(float64(t.phase))
	metrics.BreachCount.Set(float64(t.breachCount))
	if emit != nil {
		t.sendMu.Lock()
	}
	t.mu.Unlock()

	// Delivery happens outside the state lock so a slow sink never
	// stalls sample evaluation; sendMu keeps deliveries in order.
	if emit != nil {
		t.deliver(ctx, *emit)
		t.sendMu.Unlock()
	}
}

// onBreaching handles a sample above the threshold. Caller holds the lock.
func (t *Tracker) onBreaching(sample models.Sample) *models.Notification {
	log := logger.WithComponent("tracker")
	now := t.now()

	switch t.phase {
	case PhaseNominal, PhaseClearing:
		// A breach while clearing abandons the clearing window: the
		// incident never really ended.
		t.phase = PhaseWarning
		t.windowStart = now
		t.breachCount = 1

	case PhaseWarning:
		t.breachCount++
		elapsed := now.Sub(t.windowStart)
		log.Info().
			Int("count", t.breachCount).
			Float64("threshold", t.opts.Threshold).
			Str("location", sample.Label).
			Float64("temp", sample.Value).
			Dur("elapsed", elapsed).
			Msg("threshold breached")

		if elapsed >= t.opts.Window && t.breachCount > t.opts.MinSamples {
			var emit *models.Notification
			if t.opts.NotifyEachWindow || !t.alertActive {
				n := models.NewNotification(models.SeverityBreach,
					breachMessage(t.breachCount, t.opts.Threshold, sample, elapsed), now)
				emit = &n
			}
			log.Info().
				Dur("window", t.opts.Window).
				Bool("notified", emit != nil).
				Msg("slo window reached, resetting count")
			t.alertActive = true
			t.windowStart = now
			t.breachCount = 0
			return emit
		}
	}
	return nil
}

// onClear handles a sample at or below the threshold. Caller holds the lock.
func (t *Tracker) onClear(sample models.Sample) *models.Notification {
	log := logger.WithComponent("tracker")
	now := t.now()

	switch t.phase {
	case PhaseNominal:
		// Nothing open, nothing to do.

	case PhaseWarning:
		t.phase = PhaseClearing
		t.windowStart = now
		t.breachCount = 1

	case PhaseClearing:
		t.breachCount++
		elapsed := now.Sub(t.windowStart)
		log.Info().
			Int("count", t.breachCount).
			Float64("threshold", t.opts.Threshold).
			Str("location", sample.Label).
			Float64("temp", sample.Value).
			Dur("elapsed", elapsed).
			Msg("below threshold")

		if elapsed >= t.opts.Window && t.breachCount > t.opts.MinSamples {
			var emit *models.Notification
			if t.alertActive {
				n := models.NewNotification(models.SeverityClear,
					clearMessage(t.breachCount, t.opts.Threshold, sample, elapsed), now)
				emit = &n
				t.alertActive = false
			}
			log.Info().
				Dur("window", t.opts.Window).
				Bool("notified", emit != nil).
				Msg("clear window reached, resetting to nominal")
			t.phase = PhaseNominal
			t.windowStart = time.Time{}
			t.breachCount = 0
			return emit
		}
	}
	return nil
}

// deliver hands the notification to the sink. Failures are logged and
// never retried; the next emitted notification is the only future attempt.
func (t *Tracker) deliver(ctx context.Context, n models.Notification) {
	log := logger.WithComponent("tracker")
	if err := t.sink.Send(ctx, n); err != nil {
		log.Error().Err(err).
			Str("severity", string(n.Severity)).
			Msg("notification send failed")
		metrics.NotificationsTotal.WithLabelValues(string(n.Severity), "failed").Inc()
		return
	}
	log.Info().
		Str("id", n.ID).
		Str("severity", string(n.Severity)).
		Msg("notification sent")
	metrics.NotificationsTotal.WithLabelValues(string(n.Severity), "sent").Inc()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Phase:       t.phase.String(),
		WindowStart: t.windowStart,
		BreachCount: t.breachCount,
		AlertActive: t.alertActive,
	}
}

func breachMessage(count int, threshold float64, s models.Sample, elapsed time.Duration) string {
	return fmt.Sprintf("%d count(s) of %.1fF threshold reached at %s (%.1fF) for %.0f seconds",
		count, threshold, s.Label, s.Value, elapsed.Seconds())
}

func clearMessage(count int, threshold float64, s models.Sample, elapsed time.Duration) string {
	return fmt.Sprintf("%d count(s) of %.1fF threshold NOT reached at %s (%.1fF) for %.0f seconds",
		count, threshold, s.Label, s.Value, elapsed.Seconds())
}

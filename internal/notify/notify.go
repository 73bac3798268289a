// Package notify delivers alert notifications to an external sink. A sink
// is a dumb pipe: all debounce and dedup logic lives in the tracker, and a
// failed send is logged by the caller, never retried here.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/blissend/sensor/internal/config"
	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/models"
)

// Sink errors
var (
	ErrSinkClosed = errors.New("sink is closed")
)

// Sink delivers one notification. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, n models.Notification) error
	Close() error
}

// FromConfig builds the sink named by cfg.Sink.
func FromConfig(cfg *config.Config) (Sink, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(), nil
	case "slack":
		return NewSlackSink(SlackConfig{
			WebhookURL: cfg.SlackWebhookURL,
			Token:      cfg.SlackToken,
			Channel:    cfg.SlackChannel,
		})
	case "kafka":
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Sink)
	}
}

// logSink writes notifications to the log. It is the default sink and
// the fallback when no external sink is configured.
type logSink struct{}

// NewLogSink returns a sink that only logs.
func NewLogSink() Sink { return &logSink{} }

func (s *logSink) Send(ctx context.Context, n models.Notification) error {
	log := logger.WithComponent("notify")
	log.Info().
		Str("id", n.ID).
		Str("severity", string(n.Severity)).
		Msg(n.Message)
	return nil
}

func (s *logSink) Close() error { return nil }

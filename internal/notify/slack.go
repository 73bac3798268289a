package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/blissend/sensor/internal/models"
)

// Slack errors
var (
	ErrSlackNotConfigured = errors.New("slack sink needs a webhook url or an api token")
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// SlackConfig configures the Slack sink. WebhookURL takes precedence;
// otherwise Token+Channel are used against chat.postMessage.
type SlackConfig struct {
	WebhookURL string
	Token      string
	Channel    string
}

type slackSink struct {
	cfg    SlackConfig
	apiURL string
	http   *http.Client
	closed atomic.Bool
}

// NewSlackSink creates a sink posting plain-text messages to Slack.
func NewSlackSink(cfg SlackConfig) (Sink, error) {
	if cfg.WebhookURL == "" && cfg.Token == "" {
		return nil, ErrSlackNotConfigured
	}
	return &slackSink{
		cfg:    cfg,
		apiURL: slackPostMessageURL,
		http:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (s *slackSink) Send(ctx context.Context, n models.Notification) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}

	payload, err := json.Marshal(slackPayload{
		Channel: s.cfg.Channel,
		Text:    n.Message,
	})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	endpoint := s.cfg.WebhookURL
	if endpoint == "" {
		endpoint = s.apiURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.WebhookURL == "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack send: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *slackSink) Close() error {
	s.closed.Store(true)
	return nil
}

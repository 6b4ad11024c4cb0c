package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/livefeeds/feedwatch/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	deliverTimeout  = 10 * time.Second
)

// Event describes one public-status change.
type Event struct {
	EntityID string    `json:"entity_id"`
	Title    string    `json:"title"`
	Code     string    `json:"code"`
	Comment  string    `json:"comment"`
	At       time.Time `json:"at"`
}

// Notifier delivers events to the configured webhook targets.
type Notifier struct {
	targets  []config.WebhookConfig
	client   *http.Client
	lastSent map[string]time.Time // key: target index + entity
	now      func() time.Time     // injectable for deterministic tests
}

// New returns a Notifier; an empty target list makes StatusChanged a no-op.
func New(targets []config.WebhookConfig) *Notifier {
	return &Notifier{
		targets:  targets,
		client:   &http.Client{Timeout: deliverTimeout},
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// StatusChanged delivers ev to every target whose cooldown for the entity
// has lapsed.
func (n *Notifier) StatusChanged(ctx context.Context, ev Event) {
	for i, target := range n.targets {
		key := fmt.Sprintf("%d:%s", i, ev.EntityID)

		cooldown := target.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if n.now().Sub(n.lastSent[key]) <= cooldown {
			continue
		}

		if err := n.deliver(ctx, target, ev); err != nil {
			slog.Warn("notify: delivery failed",
				"type", target.Type, "entity", ev.EntityID, "err", err)
			continue
		}
		n.lastSent[key] = n.now()
		slog.Info("notify: delivered", "type", target.Type, "entity", ev.EntityID, "code", ev.Code)
	}
}

func (n *Notifier) deliver(ctx context.Context, target config.WebhookConfig, ev Event) error {
	url := target.URL()
	if url == "" {
		return fmt.Errorf("webhook url not resolved from %s", target.URLEnv)
	}

	payload, err := encodePayload(target.Type, ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func encodePayload(targetType string, ev Event) ([]byte, error) {
	text := fmt.Sprintf("%s (%s): status %s: %s", ev.Title, ev.EntityID, ev.Code, ev.Comment)

	var body any
	switch targetType {
	case "slack":
		body = map[string]string{"text": text}
	case "teams":
		body = map[string]string{
			"@type":   "MessageCard",
			"summary": "feedwatch status change",
			"text":    text,
		}
	default: // generic http target receives the raw event
		body = ev
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return payload, nil
}

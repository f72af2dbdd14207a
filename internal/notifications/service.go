package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filmlog/internal/config"
)

const userAgent = "filmlog-notify/1"

// Event names one kind of notification.
type Event string

const (
	EventIngestionCompleted Event = "ingestion_completed"
	EventIngestionFailed    Event = "ingestion_failed"
	EventTest               Event = "test"
)

// Payload carries the values an event message is built from.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:  strings.TrimSpace(cfg.Notifications.NtfyTopic),
		onSuccess: cfg.Notifications.OnSuccess,
		client:    &http.Client{Timeout: cfg.NotificationTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	onSuccess bool
	client    *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	username := payload.text("username")
	switch event {
	case EventIngestionCompleted:
		if !n.onSuccess {
			return message{}, false
		}
		body := fmt.Sprintf("Synced %s: %d films, %d reviews", username, payload.number("films"), payload.number("reviews"))
		if skipped := payload.number("pages_skipped"); skipped > 0 {
			body += fmt.Sprintf(" (%d pages skipped)", skipped)
		}
		return message{
			title: "filmlog - Ingestion Complete",
			body:  body,
			tags:  []string{"filmlog", "ingest", "completed"},
		}, true
	case EventIngestionFailed:
		reason := payload.text("error")
		if reason == "" {
			reason = "unknown error"
		}
		body := fmt.Sprintf("Ingestion of %s failed: %s", username, reason)
		if kind := payload.text("kind"); kind != "" {
			body += fmt.Sprintf(" [%s]", kind)
		}
		return message{
			title:    "filmlog - Ingestion Failed",
			body:     body,
			tags:     []string{"filmlog", "ingest", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "filmlog - Test",
			body:     "Notification system test",
			tags:     []string{"filmlog", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

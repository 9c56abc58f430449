package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsflow/internal/config"
)

const userAgent = "newsflow/1.0"

// Event names a notification type.
type Event string

const (
	// EventInvariantViolation reports a broken pipeline invariant such as a
	// missing prior-stage artifact.
	EventInvariantViolation Event = "invariant_violation"
	// EventItemPublished reports a successful Telegram post.
	EventItemPublished Event = "item_published"
	// EventStageError reports a stage that cannot run at all (store down, bad credentials).
	EventStageError Event = "stage_error"
	// EventItemsIngested reports new items discovered by feed ingestion.
	EventItemsIngested Event = "items_ingested"
	// EventTest is sent by `newsflow notify test`.
	EventTest Event = "test"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventInvariantViolation:
		return message{
			title:    "newsflow - Invariant Violation",
			body:     fmt.Sprintf("Item %s in %s: %s", payload.text("itemID"), payload.text("stage"), payload.text("error")),
			tags:     []string{"newsflow", "invariant", "alert"},
			priority: "high",
		}, true
	case EventItemPublished:
		body := fmt.Sprintf("Published: %s", payload.text("title"))
		if link := payload.text("sourceURL"); link != "" {
			body += "\n" + link
		}
		return message{
			title: "newsflow - Published",
			body:  body,
			tags:  []string{"newsflow", "publish", "completed"},
		}, true
	case EventStageError:
		label := payload.text("stage")
		body := "Error"
		if label != "" {
			body += " in " + label
		}
		body += ": " + fallback(payload.text("error"), "unknown")
		return message{
			title:    "newsflow - Error",
			body:     body,
			tags:     []string{"newsflow", "error", "alert"},
			priority: "high",
		}, true
	case EventItemsIngested:
		count, _ := payload["count"].(int)
		if count <= 0 {
			return message{}, false
		}
		return message{
			title: "newsflow - New Items",
			body:  fmt.Sprintf("Queued %d new item(s) from %s", count, payload.text("feed")),
			tags:  []string{"newsflow", "ingest"},
		}, true
	case EventTest:
		return message{
			title:    "newsflow - Test",
			body:     "Notification system test",
			tags:     []string{"newsflow", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch value := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case error:
		return strings.TrimSpace(value.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a Service that discards every event.
func NewNoop() Service { return noopService{} }

// SendTest publishes EventTest and reports what happened in a form suitable
// for CLI output.
func SendTest(ctx context.Context, cfg *config.Config, notifier Service) (bool, string, error) {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if notifier == nil {
		notifier = NewService(cfg)
	}
	if err := notifier.Publish(ctx, EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

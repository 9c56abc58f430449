package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/services/telegram"
)

type fakeSender struct {
	chatID string
	text   string
	err    error
}

func (f *fakeSender) SendHTML(_ context.Context, chatID, text string) (*telegram.Message, error) {
	f.chatID = chatID
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return &telegram.Message{MessageID: 9}, nil
}

func (f *fakeSender) GetMe(context.Context) error { return f.err }

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func testItem() *queue.Item {
	return &queue.Item{
		ID:          "42",
		Title:       "Bridge",
		SourceURL:   "https://news.example.com/bridge",
		PublishedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:      queue.StatusTranslated,
	}
}

func TestExecuteSendsMessageAndReturnsReceipt(t *testing.T) {
	sender := &fakeSender{}
	notifier := &recordingNotifier{}
	sentAt := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	p := New(sender, "-1001", WithNotifier(notifier), WithClock(func() time.Time { return sentAt }))

	out, err := p.Execute(context.Background(), testItem(), []byte(translatedDoc))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if sender.chatID != "-1001" {
		t.Fatalf("unexpected chat id %q", sender.chatID)
	}
	if !strings.HasPrefix(sender.text, "<b>Мост открыт</b>") || !strings.Contains(sender.text, "https://news.example.com/bridge") {
		t.Fatalf("unexpected message text %q", sender.text)
	}

	var receipt Receipt
	if err := json.Unmarshal(out, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.ItemID != "42" || receipt.MessageID != 9 || receipt.ChatID != "-1001" || !receipt.PublishedAt.Equal(sentAt) {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventItemPublished {
		t.Fatalf("expected one publish event, got %v", notifier.events)
	}
}

func TestExecutePropagatesSendFailure(t *testing.T) {
	sendErr := services.Wrap(services.ErrTransient, "", "telegram send", "failed", errors.New("502"))
	notifier := &recordingNotifier{}
	p := New(&fakeSender{err: sendErr}, "-1001", WithNotifier(notifier))
	if _, err := p.Execute(context.Background(), testItem(), []byte(translatedDoc)); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("no event expected on failure, got %v", notifier.events)
	}
}

func TestExecuteRejectsDocumentWithoutText(t *testing.T) {
	p := New(&fakeSender{}, "-1001")
	_, err := p.Execute(context.Background(), testItem(), []byte("<html><body><script>x()</script></body></html>"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckRequiresChatID(t *testing.T) {
	if h := New(&fakeSender{}, "").HealthCheck(context.Background()); h.Ready {
		t.Fatalf("expected unhealthy without chat id")
	}
	if h := New(&fakeSender{}, "-1").HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy, got %+v", h)
	}
}

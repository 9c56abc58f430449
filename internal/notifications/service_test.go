package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsflow/internal/config"
	"newsflow/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventItemPublished, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "published",
			event: notifications.EventItemPublished,
			payload: notifications.Payload{
				"title":     "Budget approved",
				"sourceURL": "https://news.example.com/a",
			},
			expectTitle:   "newsflow - Published",
			expectMessage: "Published: Budget approved\nhttps://news.example.com/a",
			expectTags:    "newsflow,publish,completed",
		},
		{
			name:  "invariant violation",
			event: notifications.EventInvariantViolation,
			payload: notifications.Payload{
				"itemID": "42",
				"stage":  "Extracted",
				"error":  errors.New("artifact missing: Downloaded_42.html"),
			},
			expectTitle:    "newsflow - Invariant Violation",
			expectMessage:  "Item 42 in Extracted: artifact missing: Downloaded_42.html",
			expectTags:     "newsflow,invariant,alert",
			expectPriority: "high",
		},
		{
			name:  "stage error",
			event: notifications.EventStageError,
			payload: notifications.Payload{
				"stage": "Translated",
				"error": "llm.api_key missing",
			},
			expectTitle:    "newsflow - Error",
			expectMessage:  "Error in Translated: llm.api_key missing",
			expectTags:     "newsflow,error,alert",
			expectPriority: "high",
		},
		{
			name:          "ingested",
			event:         notifications.EventItemsIngested,
			payload:       notifications.Payload{"count": 3, "feed": "https://news.example.com/"},
			expectTitle:   "newsflow - New Items",
			expectMessage: "Queued 3 new item(s) from https://news.example.com/",
			expectTags:    "newsflow,ingest",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSkipsEmptyAndUnknownEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventItemsIngested, notifications.Payload{"count": 0}); err != nil {
		t.Fatalf("expected nil for empty ingest, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("expected nil for unknown event, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

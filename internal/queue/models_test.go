package queue_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"newsflow/internal/queue"
)

func TestStatusOrdering(t *testing.T) {
	tests := []struct {
		status   queue.Status
		next     queue.Status
		hasNext  bool
		stage    string
		position int
	}{
		{queue.StatusNew, queue.StatusDownloaded, true, "New", 0},
		{queue.StatusDownloaded, queue.StatusExtracted, true, "Downloaded", 1},
		{queue.StatusExtracted, queue.StatusTranslated, true, "Extracted", 2},
		{queue.StatusTranslated, queue.StatusPublished, true, "Translated", 3},
		{queue.StatusPublished, "", false, "Published", 4},
	}
	for _, tc := range tests {
		next, ok := tc.status.Next()
		if next != tc.next || ok != tc.hasNext {
			t.Fatalf("%s.Next() = %q, %v", tc.status, next, ok)
		}
		if got := tc.status.StageName(); got != tc.stage {
			t.Fatalf("%s.StageName() = %q, want %q", tc.status, got, tc.stage)
		}
		if got := tc.status.Index(); got != tc.position {
			t.Fatalf("%s.Index() = %d, want %d", tc.status, got, tc.position)
		}
	}
	if _, ok := queue.StatusNew.Prev(); ok {
		t.Fatal("new has no predecessor")
	}
	if prev, ok := queue.StatusExtracted.Prev(); !ok || prev != queue.StatusDownloaded {
		t.Fatalf("unexpected predecessor %q", prev)
	}
}

func TestValidTransitionOnlyForwardByOne(t *testing.T) {
	statuses := queue.AllStatuses()
	for i, from := range statuses {
		for j, to := range statuses {
			want := j == i+1
			if got := queue.ValidTransition(from, to); got != want {
				t.Fatalf("ValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if queue.ValidTransition("bogus", queue.StatusNew) {
		t.Fatal("unknown status must not transition")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Downloaded "); !ok || status != queue.StatusDownloaded {
		t.Fatalf("ParseStatus stage name = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("rewritten"); ok {
		t.Fatal("expected unknown status to fail")
	}
}

func TestItemIDForURLIsStable(t *testing.T) {
	a := queue.ItemIDForURL("https://example.com/news/1")
	b := queue.ItemIDForURL("  https://example.com/news/1 ")
	c := queue.ItemIDForURL("https://example.com/news/2")
	if a != b {
		t.Fatalf("expected trimmed URL to produce same id: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("expected different URLs to produce different ids")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantLen int
	}{
		{name: "short", message: "  boom  ", wantLen: 4},
		{name: "ascii over limit", message: strings.Repeat("x", 2500), wantLen: 2000},
		{name: "cyrillic straddles limit", message: "a" + strings.Repeat("я", 1500), wantLen: 1999},
		{name: "cyrillic on boundary", message: strings.Repeat("я", 1500), wantLen: 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queue.TruncateError(tt.message)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncated message is not valid UTF-8")
			}
		})
	}
}

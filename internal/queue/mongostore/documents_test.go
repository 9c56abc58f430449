package mongostore

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"newsflow/internal/queue"
)

func TestStatusFilter(t *testing.T) {
	tests := []struct {
		name     string
		statuses []queue.Status
		want     bson.M
	}{
		{"all", nil, bson.M{}},
		{"single", []queue.Status{queue.StatusNew}, bson.M{"status": "new"}},
		{"many", []queue.Status{queue.StatusNew, queue.StatusPublished}, bson.M{"status": bson.M{"$in": []string{"new", "published"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFilter(tc.statuses...); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("statusFilter = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCompareAndSwapFilterIncludesExpectedStatus(t *testing.T) {
	got := casFilter("42", queue.StatusDownloaded)
	want := bson.M{"_id": "42", "status": "downloaded"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("casFilter = %v, want %v", got, want)
	}
}

func TestAdvanceUpdateClearsDiagnostics(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	update := advanceUpdate(queue.StatusExtracted, now)
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("missing $set in %v", update)
	}
	if set["status"] != "extracted" || set["attempts"] != 0 || set["updated_at"] != now {
		t.Fatalf("unexpected $set %v", set)
	}
	if _, ok := update["$unset"].(bson.M)["last_error"]; !ok {
		t.Fatalf("expected last_error to be unset: %v", update)
	}
}

func TestFailureUpdateTruncatesMessage(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	update := failureUpdate(string(long), time.Now())
	if update["$inc"].(bson.M)["attempts"] != 1 {
		t.Fatalf("expected attempts increment: %v", update)
	}
	if msg := update["$set"].(bson.M)["last_error"].(string); len(msg) != 2000 {
		t.Fatalf("expected truncated message, got %d bytes", len(msg))
	}
}

func TestDocumentRoundTripThroughBSON(t *testing.T) {
	item := &queue.Item{
		ID:          "abc",
		Title:       "Title",
		SourceURL:   "https://news.example.com/abc",
		PublishedAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		Status:      queue.StatusTranslated,
		CreatedAt:   time.Date(2025, 2, 3, 5, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 2, 3, 6, 0, 0, 0, time.UTC),
		Attempts:    2,
		LastError:   "timeout",
	}
	raw, err := bson.Marshal(toDocument(item))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded document
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := decoded.item()
	if got.ID != item.ID || got.Status != item.Status || got.Attempts != 2 || got.LastError != "timeout" || got.SourceURL != item.SourceURL {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, item)
	}
	if !got.PublishedAt.Equal(item.PublishedAt) || !got.CreatedAt.Equal(item.CreatedAt) || !got.UpdatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("timestamps changed: %+v", got)
	}

	var keys bson.M
	if err := bson.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	if keys["_id"] != "abc" || keys["source_url"] == nil {
		t.Fatalf("unexpected stored keys %v", keys)
	}
}

func TestTickDocumentDefaultsTimes(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := toTickDocument(queue.TickRecord{Stage: "Published", Failed: 1}, now)
	if !doc.StartedAt.Equal(now) || !doc.FinishedAt.Equal(now) {
		t.Fatalf("expected zero times to default to now: %+v", doc)
	}
	if rec := doc.record(); rec.Stage != "Published" || rec.Failed != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

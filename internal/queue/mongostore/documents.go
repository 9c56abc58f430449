package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"newsflow/internal/queue"
)

var insertionOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

type document struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	SourceURL   string    `bson:"source_url"`
	PublishedAt time.Time `bson:"published_at,omitempty"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
	Attempts    int       `bson:"attempts"`
	LastError   string    `bson:"last_error,omitempty"`
}

func toDocument(item *queue.Item) document {
	return document{
		ID:          item.ID,
		Title:       item.Title,
		SourceURL:   item.SourceURL,
		PublishedAt: item.PublishedAt.UTC(),
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		Attempts:    item.Attempts,
		LastError:   item.LastError,
	}
}

func (d document) item() *queue.Item {
	return &queue.Item{
		ID:          d.ID,
		Title:       d.Title,
		SourceURL:   d.SourceURL,
		PublishedAt: d.PublishedAt.UTC(),
		Status:      queue.Status(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		Attempts:    d.Attempts,
		LastError:   d.LastError,
	}
}

type tickDocument struct {
	Stage         string    `bson:"_id"`
	CorrelationID string    `bson:"correlation_id"`
	StartedAt     time.Time `bson:"started_at"`
	FinishedAt    time.Time `bson:"finished_at"`
	Selected      int       `bson:"selected"`
	Advanced      int       `bson:"advanced"`
	Reused        int       `bson:"reused"`
	Raced         int       `bson:"raced"`
	Failed        int       `bson:"failed"`
	Error         string    `bson:"error,omitempty"`
}

func toTickDocument(record queue.TickRecord, now time.Time) tickDocument {
	started := record.StartedAt
	if started.IsZero() {
		started = now
	}
	finished := record.FinishedAt
	if finished.IsZero() {
		finished = now
	}
	return tickDocument{
		Stage:         record.Stage,
		CorrelationID: record.CorrelationID,
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		Selected:      record.Selected,
		Advanced:      record.Advanced,
		Reused:        record.Reused,
		Raced:         record.Raced,
		Failed:        record.Failed,
		Error:         record.Error,
	}
}

func (d tickDocument) record() queue.TickRecord {
	return queue.TickRecord{
		Stage:         d.Stage,
		CorrelationID: d.CorrelationID,
		StartedAt:     d.StartedAt.UTC(),
		FinishedAt:    d.FinishedAt.UTC(),
		Selected:      d.Selected,
		Advanced:      d.Advanced,
		Reused:        d.Reused,
		Raced:         d.Raced,
		Failed:        d.Failed,
		Error:         d.Error,
	}
}

// statusFilter matches any of statuses, or every document when none is given.
func statusFilter(statuses ...queue.Status) bson.M {
	switch len(statuses) {
	case 0:
		return bson.M{}
	case 1:
		return bson.M{"status": string(statuses[0])}
	}
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return bson.M{"status": bson.M{"$in": values}}
}

func casFilter(id string, expected queue.Status) bson.M {
	return bson.M{"_id": id, "status": string(expected)}
}

func advanceUpdate(next queue.Status, now time.Time) bson.M {
	return bson.M{
		"$set":   bson.M{"status": string(next), "updated_at": now, "attempts": 0},
		"$unset": bson.M{"last_error": ""},
	}
}

func failureUpdate(message string, now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"last_error": queue.TruncateError(message), "updated_at": now},
	}
}

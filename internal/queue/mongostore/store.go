package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"newsflow/internal/config"
	"newsflow/internal/queue"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Store is a MongoDB-backed item repository.
type Store struct {
	client *mongo.Client
	items  *mongo.Collection
	ticks  *mongo.Collection
}

var _ queue.Repository = (*Store)(nil)

// Open connects to store.mongo_uri, verifies the server responds, and ensures
// the status index exists.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("open mongo store: config is nil")
	}
	uri := strings.TrimSpace(cfg.Store.MongoURI)
	if uri == "" {
		return nil, errors.New("open mongo store: store.mongo_uri is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, queue.Unavailable("connect mongo", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, queue.Unavailable("ping mongo", err)
	}

	db := client.Database(cfg.Store.MongoDatabase)
	store := &Store{
		client: client,
		items:  db.Collection(cfg.Store.MongoCollection),
		ticks:  db.Collection(cfg.Store.MongoCollection + "_ticks"),
	}
	if err := store.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return queue.Unavailable("create status index", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks server reachability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return queue.Unavailable("ping", err)
	}
	return nil
}

// Insert adds item unless its id exists.
func (s *Store) Insert(ctx context.Context, item *queue.Item) (bool, error) {
	if err := queue.ValidateNewItem(item); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if _, err := s.items.InsertOne(ctx, toDocument(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, queue.Unavailable("insert item", err)
	}
	return true, nil
}

// GetByID returns nil, nil when the item is absent.
func (s *Store) GetByID(ctx context.Context, id string) (*queue.Item, error) {
	var doc document
	err := s.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, queue.Unavailable("get item", err)
	}
	return doc.item(), nil
}

// SelectByStatus returns items in status, oldest first.
func (s *Store) SelectByStatus(ctx context.Context, status queue.Status) ([]*queue.Item, error) {
	items, err := s.find(ctx, statusFilter(status))
	if err != nil {
		return nil, queue.Unavailable("select by status", err)
	}
	return items, nil
}

// List returns items in any of statuses, or all items.
func (s *Store) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	items, err := s.find(ctx, statusFilter(statuses...))
	if err != nil {
		return nil, queue.Unavailable("list items", err)
	}
	return items, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]*queue.Item, error) {
	cursor, err := s.items.Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []*queue.Item
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		items = append(items, doc.item())
	}
	return items, cursor.Err()
}

// UpdateStatus is the compare-and-swap status transition.
func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next queue.Status) (bool, error) {
	if err := queue.CheckTransition(expected, next); err != nil {
		return false, err
	}
	res, err := s.items.UpdateOne(ctx, casFilter(id, expected), advanceUpdate(next, time.Now().UTC()))
	if err != nil {
		return false, queue.Unavailable("update status", err)
	}
	return res.ModifiedCount == 1, nil
}

// RecordFailure annotates id while it still holds status.
func (s *Store) RecordFailure(ctx context.Context, id string, status queue.Status, message string) error {
	_, err := s.items.UpdateOne(ctx, casFilter(id, status), failureUpdate(message, time.Now().UTC()))
	if err != nil {
		return queue.Unavailable("record failure", err)
	}
	return nil
}

// Stats counts items per status.
func (s *Store) Stats(ctx context.Context) (map[queue.Status]int, error) {
	cursor, err := s.items.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, queue.Unavailable("stats", err)
	}
	defer cursor.Close(ctx)

	stats := make(map[queue.Status]int)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, queue.Unavailable("decode stats", err)
		}
		stats[queue.Status(row.Status)] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, queue.Unavailable("stats", err)
	}
	return stats, nil
}

// RecordTick upserts the latest tick summary of a stage.
func (s *Store) RecordTick(ctx context.Context, record queue.TickRecord) error {
	if strings.TrimSpace(record.Stage) == "" {
		return errors.New("record tick: stage is empty")
	}
	doc := toTickDocument(record, time.Now().UTC())
	_, err := s.ticks.ReplaceOne(ctx, bson.M{"_id": doc.Stage}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return queue.Unavailable("record tick", err)
	}
	return nil
}

// StageTicks returns every stage summary ordered by stage name.
func (s *Store) StageTicks(ctx context.Context) ([]queue.TickRecord, error) {
	cursor, err := s.ticks.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, queue.Unavailable("stage ticks", err)
	}
	defer cursor.Close(ctx)

	var records []queue.TickRecord
	for cursor.Next(ctx) {
		var doc tickDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, queue.Unavailable("decode stage tick", err)
		}
		records = append(records, doc.record())
	}
	if err := cursor.Err(); err != nil {
		return nil, queue.Unavailable("stage ticks", err)
	}
	return records, nil
}

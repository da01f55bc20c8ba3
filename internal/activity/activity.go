// Package activity ведёт журнал действий пользователей в MongoDB.
package activity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmeshcher/catering-system/internal/model"
)

// Типы событий журнала.
const (
	EventOrderPlaced        = "order_placed"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderCancelled     = "order_cancelled"
	EventEquipmentReturned  = "equipment_returned"
	EventEquipmentPenalty   = "equipment_penalty"
)

const (
	// CollectionName задаёт коллекцию журнала действий.
	CollectionName = "activity_logs"
	// SystemActor записывается вместо email для действий фоновых задач.
	SystemActor = "system"
)

// SystemRole записывается вместо роли для действий фоновых задач.
const SystemRole model.Role = "system"

// Entry описывает одну запись журнала действий.
type Entry struct {
	EventType  string         `bson:"event_type"`
	ActorEmail string         `bson:"actor_email"`
	ActorRole  model.Role     `bson:"actor_role"`
	Context    map[string]any `bson:"context,omitempty"`
	OccurredAt time.Time      `bson:"occurred_at"`
}

// Recorder записывает события в журнал.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NoopRecorder ничего не записывает.
type NoopRecorder struct{}

// Record ничего не делает.
func (NoopRecorder) Record(context.Context, Entry) error { return nil }

// MongoRecorder дописывает записи в коллекцию MongoDB.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecorder подключается к MongoDB и создаёт индекс по типу события и времени.
func NewMongoRecorder(ctx context.Context, uri, database string) (*MongoRecorder, error) {
	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(CollectionName)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "occurred_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create activity index: %w", err)
	}

	return &MongoRecorder{client: client, collection: collection}, nil
}

// Record добавляет запись в журнал.
func (r *MongoRecorder) Record(ctx context.Context, e Entry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// Close отключается от MongoDB.
func (r *MongoRecorder) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from MongoDB: %w", err)
	}
	return nil
}

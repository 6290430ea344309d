package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"feed_spider/internal/config"
)

// maxMongoValue keeps a value clear of MongoDB's 16 MiB document limit.
const maxMongoValue = 15 << 20

// ErrValueTooLarge is returned by MongoKV.Set when a value cannot fit in one
// document.
var ErrValueTooLarge = errors.New("value exceeds the mongo document size limit")

// MongoKV stores each key as one document {_id, value, updated_at} where
// value holds the JSON encoding. The whole record set lives under one key, so
// a harvest is capped at roughly 15 MiB of JSON on this backend.
type MongoKV struct {
	client     *mongo.Client
	collection *mongo.Collection
	prefix     string
}

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoKV(ctx context.Context, cfg config.MongoConfig, prefix string) (*MongoKV, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	m := &MongoKV{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		prefix:     prefix,
	}

	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}
	return m, nil
}

func (m *MongoKV) createIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	return err
}

func (m *MongoKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": prefixed(m.prefix, key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(doc.Value), dst)
}

func (m *MongoKV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if len(raw) > maxMongoValue {
		return fmt.Errorf("%w: key %q is %d bytes", ErrValueTooLarge, key, len(raw))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": prefixed(m.prefix, key)}
	update := bson.M{"$set": bson.M{
		"value":      string(raw),
		"updated_at": time.Now().UTC(),
	}}

	_, err = m.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoKV) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": prefixed(m.prefix, key)})
	return err
}

func (m *MongoKV) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

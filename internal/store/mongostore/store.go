// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/store"
)

// Collection names.
const (
	CollectionCarts     = "Cart"
	CollectionOrders    = "Orders"
	CollectionShops     = "Shops"
	CollectionProducts  = "Products"
	CollectionInventory = "SimpleInventory"
	CollectionAccounts  = "Accounts"
	CollectionEvents    = "DomainEvents"
)

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// Connect dials MongoDB and ensures the indexes the queries rely on.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetRegistry(NewRegistry()).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	s := &Store{client: client, db: client.Database(database), log: log}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the secondary indexes used by cart and shop lookups.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollectionCarts: {
			{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "shopId", Value: 1}}},
			{Keys: bson.D{{Key: "anonymousAccessToken", Value: 1}}},
		},
		CollectionShops: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "shopType", Value: 1}}},
		},
		CollectionProducts: {
			{Keys: bson.D{{Key: "ancestors", Value: 1}}},
		},
		CollectionEvents: {
			{Keys: bson.D{{Key: "topic", Value: 1}, {Key: "occurredAt", Value: -1}}},
		},
	}
	for name, models := range specs {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongostore: indexes for %s: %w", name, err)
		}
	}
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongostore: ping: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// RecordEvent implements events.Recorder.
func (s *Store) RecordEvent(ctx context.Context, rec events.Record) error {
	_, err := s.db.Collection(CollectionEvents).InsertOne(ctx, rec)
	return err
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, store.ErrNotFound
	}
	return out, err
}

// saveVersioned inserts doc when version is zero and otherwise replaces the
// document whose version still equals version.
func saveVersioned(ctx context.Context, coll *mongo.Collection, id string, version int64, doc any) error {
	if version == 0 {
		_, err := coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s already exists", store.ErrVersionConflict, id)
		}
		return err
	}
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrVersionConflict, id)
	}
	return nil
}

var _ store.Store = (*Store)(nil)

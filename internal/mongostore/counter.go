package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterCollection = "ordercounters"

// CounterRepository keeps one {user_id, seq} document per tenant
type CounterRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client, pings it and ensures the unique user_id index
func Connect(ctx context.Context, uri, database string) (*CounterRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	repo := &CounterRepository{
		client: client,
		coll:   client.Database(database).Collection(counterCollection),
	}

	_, err = repo.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create counter index: %w", err)
	}

	return repo, nil
}

// NextSequence increments seq with a server-side findOneAndUpdate, creating the document on first use.
func (r *CounterRepository) NextSequence(ctx context.Context, tenantID string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	update := bson.M{
		"$inc": bson.M{"seq": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var counter models.OrderCounter
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"user_id": tenantID}, update, opts).Decode(&counter)
	if mongo.IsDuplicateKeyError(err) {
		// two first-time upserts raced on the unique index; the document exists now
		err = r.coll.FindOneAndUpdate(ctx, bson.M{"user_id": tenantID}, update, opts).Decode(&counter)
	}
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return counter.Seq, nil
}

// CurrentSequence returns the stored seq, 0 when the tenant has none
func (r *CounterRepository) CurrentSequence(ctx context.Context, tenantID string) (int64, error) {
	var counter models.OrderCounter
	err := r.coll.FindOne(ctx, bson.M{"user_id": tenantID}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Ping checks the server is reachable
func (r *CounterRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client
func (r *CounterRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

package bookings

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps bookings in a collection with a unique index on timestamp restricted
// to completed documents, so the server rejects a second completed booking for a slot.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps a collection. Call EnsureIndexes once at startup.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	if coll == nil {
		panic("bookings: mongo collection required")
	}
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the completed-slot unique index and the listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().
				SetName("completed_slot_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentStatus": string(PaymentCompleted)}),
		},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("bookings: create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]*Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("bookings: find: %w", err)
	}
	out := []*Booking{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("bookings: decode list: %w", err)
	}
	return out, nil
}

func (s *MongoStore) SlotTaken(ctx context.Context, timestamp int64) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"timestamp": timestamp, "paymentStatus": string(PaymentCompleted)},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("bookings: count completed: %w", err)
	}
	return n > 0, nil
}

// Insert relies on the partial unique index for completed bookings. Pending bookings do
// not claim the slot, so they only need the read-side check.
func (s *MongoStore) Insert(ctx context.Context, b *Booking) error {
	if !b.HoldsSlot() {
		taken, err := s.SlotTaken(ctx, b.Timestamp)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotConflict
		}
	}
	if _, err := s.coll.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: find one: %w", err)
	}
	return &b, nil
}

// Update replaces the document only if updatedAt still matches what was read.
func (s *MongoStore) Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error) {
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := cloneBooking(current)
		if err := fn(next); err != nil {
			return nil, err
		}

		res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "updatedAt": current.UpdatedAt}, next)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrSlotConflict
			}
			return nil, fmt.Errorf("bookings: replace: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, errConcurrentUpdate
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("bookings: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrBookingNotFound
	}
	return nil
}

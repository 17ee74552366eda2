package notifications

import (
	"context"

	"github.com/sitework/sitework/internal/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores notifications in a MongoDB collection.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo ensures the lookup indexes exist and returns the repository.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Insert(ctx context.Context, n *Notification) error {
	_, err := m.col.InsertOne(ctx, n)
	return err
}

func (m *MongoRepo) ListFor(ctx context.Context, recipient string, unreadOnly bool, offset, limit int) ([]*Notification, int, error) {
	filter := bson.M{"recipientId": recipient}
	if unreadOnly {
		filter["read"] = false
	}
	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	out := []*Notification{}
	for cur.Next(ctx) {
		var n Notification
		if err := cur.Decode(&n); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, int(total), cur.Err()
}

func (m *MongoRepo) MarkRead(ctx context.Context, recipient, id string) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id, "recipientId": recipient}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moment-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// DirectMessageRepository abstracts 1:1 message persistence.
type DirectMessageRepository interface {
	Insert(ctx context.Context, msg models.DirectMessage) (string, error)
	History(ctx context.Context, userID, targetID, limit int, before *time.Time) ([]models.DirectMessage, error)
	SoftDelete(ctx context.Context, messageID string) error
}

// DirectMessageRepo is the document-store implementation.
type DirectMessageRepo struct {
	col *mongo.Collection
}

// NewDirectMessageRepo constructs a DirectMessageRepo.
func NewDirectMessageRepo(col *mongo.Collection) *DirectMessageRepo {
	return &DirectMessageRepo{col: col}
}

// Insert persists a canonical message and returns the store-assigned id.
func (r *DirectMessageRepo) Insert(ctx context.Context, msg models.DirectMessage) (string, error) {
	res, err := r.col.InsertOne(ctx, msg)
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted id type")
	}
	return oid.Hex(), nil
}

// History returns the most recent messages between the pair before the cursor,
// newest first. Soft-deleted messages are excluded.
func (r *DirectMessageRepo) History(ctx context.Context, userID, targetID, limit int, before *time.Time) ([]models.DirectMessage, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"from": userID, "to": targetID},
			{"from": targetID, "to": userID},
		},
		"is_delete": models.DeleteStateActive,
	}
	if before != nil {
		filter["time"] = bson.M{"$lt": *before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.DirectMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].ID = msgs[i].OID.Hex()
	}
	return msgs, nil
}

// SoftDelete flips the soft-delete flag; the document stays in place.
func (r *DirectMessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrMessageNotFound
	}
	res, err := r.col.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"is_delete": models.DeleteStateDeleted}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

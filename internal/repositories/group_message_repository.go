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

// GroupMessageRepository abstracts group message persistence.
type GroupMessageRepository interface {
	Insert(ctx context.Context, msg models.GroupMessage) (string, error)
	History(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error)
	SoftDelete(ctx context.Context, messageID string) error
}

// GroupMessageRepo is the document-store implementation.
type GroupMessageRepo struct {
	col *mongo.Collection
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(col *mongo.Collection) *GroupMessageRepo {
	return &GroupMessageRepo{col: col}
}

// Insert persists a group message once, regardless of member count.
func (r *GroupMessageRepo) Insert(ctx context.Context, msg models.GroupMessage) (string, error) {
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

// History returns the group's most recent messages before the cursor, newest
// first. A group has a single shared room, so the filter is on "to" alone.
func (r *GroupMessageRepo) History(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error) {
	filter := bson.M{
		"to":        groupID,
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

	var msgs []models.GroupMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].ID = msgs[i].OID.Hex()
	}
	return msgs, nil
}

// SoftDelete flips the soft-delete flag on a group message.
func (r *GroupMessageRepo) SoftDelete(ctx context.Context, messageID string) error {
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

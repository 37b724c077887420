package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moment-chat/internal/models"
)

// UnreadPolicy states what an upsert does to the unread counter.
type UnreadPolicy int

const (
	// UnreadReset forces the counter to zero (the sender's own view).
	UnreadReset UnreadPolicy = iota
	// UnreadKeep leaves the counter untouched (receiver saw the message live).
	UnreadKeep
	// UnreadIncrement adds one (receiver had no live channel).
	UnreadIncrement
)

// RecentChatRepository maintains the per-user conversation summaries.
// Implementations must make Upsert atomic at the store level: exactly one row
// per (user_id, target_id) pair survives concurrent writers.
type RecentChatRepository interface {
	UpsertDirect(ctx context.Context, ownerID int, targetID, name, photo string, last time.Time, policy UnreadPolicy) error
	UpsertGroup(ctx context.Context, ownerID int, group models.Group, last time.Time, policy UnreadPolicy) error
	Upsert(ctx context.Context, rc models.RecentChat) error
	ClearUnread(ctx context.Context, ownerID int, targetID string) error
	List(ctx context.Context, ownerID, limit int) ([]models.RecentChat, error)
}

// RecentChatRepo is the document-store implementation.
type RecentChatRepo struct {
	col *mongo.Collection
}

// NewRecentChatRepo constructs a RecentChatRepo.
func NewRecentChatRepo(col *mongo.Collection) *RecentChatRepo {
	return &RecentChatRepo{col: col}
}

// UpsertDirect updates one side of a 1:1 conversation summary.
func (r *RecentChatRepo) UpsertDirect(ctx context.Context, ownerID int, targetID, name, photo string, last time.Time, policy UnreadPolicy) error {
	set := bson.M{
		"target_username":   name,
		"target_photo":      photo,
		"last_message_time": last,
	}
	return r.upsert(ctx, ownerID, targetID, set, policy)
}

// UpsertGroup updates one member's summary of a group conversation, carrying
// the denormalized group metadata along.
func (r *RecentChatRepo) UpsertGroup(ctx context.Context, ownerID int, group models.Group, last time.Time, policy UnreadPolicy) error {
	set := bson.M{
		"target_username":   group.Name,
		"target_photo":      group.Photo,
		"last_message_time": last,
		"is_group":          true,
		"group_name":        group.Name,
		"group_owner_id":    group.CreatorID,
		"group_members":     group.Members,
		"members_count":     group.MembersCount,
	}
	return r.upsert(ctx, ownerID, group.GroupID, set, policy)
}

// Upsert applies a caller-provided summary verbatim (the explicit REST path).
// The unread counter is set, not incremented.
func (r *RecentChatRepo) Upsert(ctx context.Context, rc models.RecentChat) error {
	set := bson.M{
		"target_username":   rc.TargetUsername,
		"target_photo":      rc.TargetPhoto,
		"last_message_time": rc.LastMessageTime,
		"unread_count":      rc.UnreadCount,
	}
	if rc.IsGroup {
		set["is_group"] = true
		set["group_name"] = rc.GroupName
		set["group_owner_id"] = rc.GroupOwnerID
		set["group_members"] = rc.GroupMembers
		set["members_count"] = rc.MembersCount
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"user_id": rc.UserID, "target_id": rc.TargetID},
	}
	_, err := r.col.UpdateOne(ctx, pairFilter(rc.UserID, rc.TargetID), update, options.Update().SetUpsert(true))
	return err
}

// ClearUnread zeroes the counter unconditionally (the explicit mark-read
// action from the owning user).
func (r *RecentChatRepo) ClearUnread(ctx context.Context, ownerID int, targetID string) error {
	_, err := r.col.UpdateOne(ctx, pairFilter(ownerID, targetID), bson.M{"$set": bson.M{"unread_count": 0}})
	return err
}

// List returns the owner's summaries by last message time, newest first.
func (r *RecentChatRepo) List(ctx context.Context, ownerID, limit int) ([]models.RecentChat, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_time", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var chats []models.RecentChat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// upsert is a single atomic update-or-insert; never read-then-write.
func (r *RecentChatRepo) upsert(ctx context.Context, ownerID int, targetID string, set bson.M, policy UnreadPolicy) error {
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"user_id": ownerID, "target_id": targetID},
	}
	switch policy {
	case UnreadReset:
		set["unread_count"] = 0
	case UnreadIncrement:
		update["$inc"] = bson.M{"unread_count": 1}
	case UnreadKeep:
		// $inc with 0 materializes the field on first insert without
		// disturbing an existing counter.
		update["$inc"] = bson.M{"unread_count": 0}
	}

	_, err := r.col.UpdateOne(ctx, pairFilter(ownerID, targetID), update, options.Update().SetUpsert(true))
	return err
}

func pairFilter(ownerID int, targetID string) bson.M {
	return bson.M{"user_id": ownerID, "target_id": targetID}
}

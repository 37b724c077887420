package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moment-chat/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts group persistence. Membership is immutable after
// creation.
type GroupRepository interface {
	Create(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Group, error)
	GetByGroupID(ctx context.Context, groupID string) (models.Group, error)
	ListForUser(ctx context.Context, userID int) ([]models.Group, error)
}

// GroupRepo is the document-store implementation.
type GroupRepo struct {
	col *mongo.Collection
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(col *mongo.Collection) *GroupRepo {
	return &GroupRepo{col: col}
}

// Create stores a new group. The creator is always included and always first;
// duplicate member ids collapse.
func (r *GroupRepo) Create(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Group, error) {
	members := []int{creatorID}
	seen := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	group := models.Group{
		GroupID:      newGroupID(),
		Name:         name,
		CreatorID:    creatorID,
		Members:      members,
		MembersCount: len(members),
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := r.col.InsertOne(ctx, group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetByGroupID fetches a single group.
func (r *GroupRepo) GetByGroupID(ctx context.Context, groupID string) (models.Group, error) {
	var group models.Group
	err := r.col.FindOne(ctx, bson.M{"group_id": groupID}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListForUser returns the groups whose member list contains the user, newest
// first.
func (r *GroupRepo) ListForUser(ctx context.Context, userID int) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"members": bson.M{"$in": []int{userID}}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// newGroupID builds an opaque collision-resistant id like group_1a2b3c4d.
func newGroupID() string {
	return fmt.Sprintf("group_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group represents a chat group. Membership is fixed at creation; the creator
// is always the first member.
type Group struct {
	OID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	GroupID      string             `bson:"group_id" json:"group_id"`
	Name         string             `bson:"name" json:"name"`
	CreatorID    int                `bson:"creator_id" json:"creator_id"`
	Members      []int              `bson:"members" json:"members"`
	MembersCount int                `bson:"members_count" json:"members_count"`
	Photo        string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// HasMember reports whether the user belongs to the group.
func (g Group) HasMember(userID int) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupInfo is the API view of a group, including the avatar strip.
type GroupInfo struct {
	GroupID       string    `json:"group_id"`
	GroupName     string    `json:"group_name"`
	CreatorID     int       `json:"creator_id"`
	GroupMembers  []int     `json:"group_members"`
	MembersCount  int       `json:"members_count"`
	AvatarMembers []string  `json:"avatar_members"`
	CreateTime    time.Time `json:"create_time"`
	Photo         string    `json:"photo,omitempty"`
}

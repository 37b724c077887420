package models

import "time"

// RecentChat is the per-user, per-conversation summary row backing the chat
// list UI. Exactly one row exists per (user_id, target_id) pair; target_id is
// a numeric user id rendered as a string for 1:1 chats, or a group id.
type RecentChat struct {
	UserID          int       `bson:"user_id" json:"user_id"`
	TargetID        string    `bson:"target_id" json:"target_id"`
	TargetUsername  string    `bson:"target_username" json:"target_username"`
	TargetPhoto     string    `bson:"target_photo" json:"target_photo"`
	LastMessageTime time.Time `bson:"last_message_time" json:"last_message_time"`
	UnreadCount     int       `bson:"unread_count" json:"unread_count"`
	IsGroup         bool      `bson:"is_group,omitempty" json:"is_group,omitempty"`
	GroupName       string    `bson:"group_name,omitempty" json:"group_name,omitempty"`
	GroupOwnerID    int       `bson:"group_owner_id,omitempty" json:"group_owner_id,omitempty"`
	GroupMembers    []int     `bson:"group_members,omitempty" json:"group_members,omitempty"`
	MembersCount    int       `bson:"members_count,omitempty" json:"members_count,omitempty"`
}

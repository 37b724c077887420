package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DirectMessage is the canonical form of a 1:1 chat message. The wire field
// names (from, to, is_delete, fromUsername...) are the protocol surface the
// clients already speak; bson names match so a persisted document round-trips
// unchanged.
type DirectMessage struct {
	OID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID           string             `bson:"id" json:"id"`
	From         int                `bson:"from" json:"from"`
	To           int                `bson:"to" json:"to"`
	Text         string             `bson:"text" json:"text"`
	Media        string             `bson:"media" json:"media"`
	FromUsername string             `bson:"fromUsername" json:"fromUsername"`
	FromPhoto    string             `bson:"fromPhoto" json:"fromPhoto"`
	IsDelete     int                `bson:"is_delete" json:"is_delete"`
	Time         time.Time          `bson:"time" json:"time"`

	// History-read aliases, filled when serving a page.
	FromID    int        `bson:"-" json:"from_id,omitempty"`
	CreatedAt *time.Time `bson:"-" json:"created_at,omitempty"`
}

// GroupMessage is the canonical form of a group chat message. To carries the
// group id; sender display info is denormalized at send time.
type GroupMessage struct {
	OID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID           string             `bson:"id" json:"id"`
	From         int                `bson:"from" json:"from"`
	To           string             `bson:"to" json:"to"`
	Text         string             `bson:"text" json:"text"`
	Media        string             `bson:"media" json:"media"`
	FromUsername string             `bson:"from_username" json:"from_username"`
	FromPhoto    string             `bson:"from_photo" json:"from_photo"`
	GroupName    string             `bson:"group_name" json:"group_name"`
	IsDelete     int                `bson:"is_delete" json:"is_delete"`
	Time         time.Time          `bson:"time" json:"time"`

	FromID    int        `bson:"-" json:"from_id,omitempty"`
	CreatedAt *time.Time `bson:"-" json:"created_at,omitempty"`
}

// Soft-delete flag values. Messages are never removed, only flagged.
const (
	DeleteStateActive  = 0
	DeleteStateDeleted = 1
)

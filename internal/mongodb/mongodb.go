package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collections holds the typed collection handles, resolved once at startup.
type Collections struct {
	DirectMessages *mongo.Collection
	GroupMessages  *mongo.Collection
	Groups         *mongo.Collection
	RecentChats    *mongo.Collection
}

// Connect dials the document store and resolves the chat collections.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *Collections, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	d := client.Database(database)
	cols := &Collections{
		DirectMessages: d.Collection("single_chat"),
		GroupMessages:  d.Collection("group_chat"),
		Groups:         d.Collection("group"),
		RecentChats:    d.Collection("recent_chats"),
	}

	if err := ensureIndexes(ctx, cols); err != nil {
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return client, cols, nil
}

// ensureIndexes creates the indexes the delivery and aggregation paths rely on.
// The unique (user_id, target_id) index is what makes recent-chat upserts
// duplicate-free under concurrent writers.
func ensureIndexes(ctx context.Context, cols *Collections) error {
	_, err := cols.RecentChats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "target_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = cols.DirectMessages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "to", Value: 1}, {Key: "from", Value: 1}, {Key: "time", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = cols.GroupMessages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "to", Value: 1}, {Key: "time", Value: -1}},
	})
	if err != nil {
		return err
	}

	_, err = cols.Groups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	})
	return err
}

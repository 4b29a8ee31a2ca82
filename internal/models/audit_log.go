package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const AuditLogColName = "audit_logs"

const (
	AuditCategoryEvents = "events"
	AuditCategoryVenues = "venues"
)

type AuditEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	Category  string             `bson:"category" json:"category"`
	Action    string             `bson:"action" json:"action"`
	Target    string             `bson:"target" json:"target"`
	Metadata  map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type AuditRepo interface {
	InsertAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, target string, limit int) ([]*AuditEntry, error)
}

func (mdb *MongodbRepo) ensureAuditIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, AuditLogColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "target", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("target_created_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("actor_created_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating audit indexes: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) InsertAudit(ctx context.Context, entry *AuditEntry) error {
	col, err := mdb.GetCollection(ctx, AuditLogColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("error inserting audit entry: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) ListAudit(ctx context.Context, target string, limit int) ([]*AuditEntry, error) {
	col, err := mdb.GetCollection(ctx, AuditLogColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, bson.M{"target": target}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding audit entries: %w", err)
	}
	return entries, nil
}

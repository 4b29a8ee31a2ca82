package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	NotificationColName = "notifications"
	notificationTTL     = 90 * 24 * time.Hour
)

type NotificationKind string

const (
	NotifyApprovalRequired NotificationKind = "approval_required"
	NotifyRejected         NotificationKind = "rejected"
	NotifyWithdrawn        NotificationKind = "withdrawn"
	NotifyCancelled        NotificationKind = "cancelled"
	NotifySanctioned       NotificationKind = "sanctioned"
)

// Notification is the single payload shape for every workflow message.
// Recipients are explicit users; RecipientRole addresses every holder of a
// role, optionally within RecipientDepartment.
type Notification struct {
	Kind                NotificationKind `json:"kind"`
	Event               EventSnapshot    `json:"event"`
	Justification       string           `json:"justification,omitempty"`
	Recipients          []Recipient      `json:"recipients,omitempty"`
	RecipientRole       Role             `json:"recipient_role,omitempty"`
	RecipientDepartment *uuid.UUID       `json:"recipient_department,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// InboxItem is one delivered notification for one user.
type InboxItem struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        string             `bson:"user_id" json:"user_id"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	Kind          NotificationKind   `bson:"kind" json:"kind"`
	Event         EventSnapshot      `bson:"event" json:"event"`
	Justification string             `bson:"justification,omitempty" json:"justification,omitempty"`
	Read          bool               `bson:"read" json:"read"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt     time.Time          `bson:"expires_at" json:"-"`
}

type InboxRepo interface {
	DeliverInbox(ctx context.Context, items []*InboxItem) error
	ListInbox(ctx context.Context, userID uuid.UUID, limit int) ([]*InboxItem, error)
	MarkInboxRead(ctx context.Context, userID uuid.UUID, id primitive.ObjectID) error
}

// EnsureIndexes creates the audit and inbox indexes including the inbox TTL.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	if err := mdb.ensureAuditIndexes(ctx); err != nil {
		return err
	}

	col, err := mdb.GetCollection(ctx, NotificationColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating notification indexes: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) DeliverInbox(ctx context.Context, items []*InboxItem) error {
	if len(items) == 0 {
		return nil
	}
	col, err := mdb.GetCollection(ctx, NotificationColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		if item.ID.IsZero() {
			item.ID = primitive.NewObjectID()
		}
		if item.ExpiresAt.IsZero() {
			item.ExpiresAt = item.CreatedAt.Add(notificationTTL)
		}
		docs = append(docs, item)
	}

	if _, err := col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error inserting notifications: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) ListInbox(ctx context.Context, userID uuid.UUID, limit int) ([]*InboxItem, error) {
	col, err := mdb.GetCollection(ctx, NotificationColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*InboxItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("error decoding notifications: %w", err)
	}
	return items, nil
}

// MarkInboxRead flags one of the user's notifications as read.
func (mdb *MongodbRepo) MarkInboxRead(ctx context.Context, userID uuid.UUID, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(ctx, NotificationColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	filter := bson.M{"_id": id, "user_id": userID.String()}
	update := bson.M{"$set": bson.M{"read": true}}

	res, err := col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

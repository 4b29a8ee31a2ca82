package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
)

// Clock returns the current instant.
type Clock func() time.Time

type Notifier interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

// AuditSink records administrative actions. Implementations must not block
// the caller on storage failures.
type AuditSink interface {
	LogAdminAction(ctx context.Context, actorID uuid.UUID, category, action, target string, metadata map[string]any)
}

// Uploader stores an event document and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, fileName string, body io.Reader) (url string, publicID string, err error)
}

// MongoAuditSink writes audit entries to MongoDB and only logs failures.
type MongoAuditSink struct {
	repo   models.AuditRepo
	clock  Clock
	logger *slog.Logger
}

func NewMongoAuditSink(repo models.AuditRepo, clock Clock, logger *slog.Logger) *MongoAuditSink {
	if clock == nil {
		clock = time.Now
	}
	return &MongoAuditSink{repo: repo, clock: clock, logger: logger}
}

func (a *MongoAuditSink) LogAdminAction(ctx context.Context, actorID uuid.UUID, category, action, target string, metadata map[string]any) {
	entry := &models.AuditEntry{
		ActorID:   actorID.String(),
		Category:  category,
		Action:    action,
		Target:    target,
		Metadata:  metadata,
		CreatedAt: a.clock(),
	}
	if err := a.repo.InsertAudit(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Error("Audit write failed",
			"actor_id", entry.ActorID,
			"category", category,
			"action", action,
			"target", target,
			"error", err,
		)
	}
}

func eventTarget(id uuid.UUID) string {
	return "event:" + id.String()
}

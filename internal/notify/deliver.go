// Package notify queues workflow notifications and delivers them into
// per-user inboxes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
)

// Deliverer resolves the audience of a notification and writes one inbox item per user.
type Deliverer struct {
	directory models.Directory
	inbox     models.InboxRepo
	logger    *slog.Logger
}

func NewDeliverer(directory models.Directory, inbox models.InboxRepo, logger *slog.Logger) *Deliverer {
	return &Deliverer{directory: directory, inbox: inbox, logger: logger}
}

func (d *Deliverer) Deliver(ctx context.Context, n models.Notification) error {
	recipients, err := d.resolve(ctx, n)
	if err != nil {
		metrics.Notification(string(n.Kind), "deliver_error")
		return err
	}
	if len(recipients) == 0 {
		d.logger.Warn("Notification has no recipients",
			"kind", n.Kind,
			"event_id", n.Event.ID,
			"role", n.RecipientRole,
		)
		metrics.Notification(string(n.Kind), "no_recipients")
		return nil
	}

	items := make([]*models.InboxItem, 0, len(recipients))
	for _, r := range recipients {
		items = append(items, &models.InboxItem{
			UserID:        r.UserID.String(),
			Email:         r.Email,
			Kind:          n.Kind,
			Event:         n.Event,
			Justification: n.Justification,
			CreatedAt:     n.CreatedAt,
		})
	}
	if err := d.inbox.DeliverInbox(ctx, items); err != nil {
		metrics.Notification(string(n.Kind), "deliver_error")
		return fmt.Errorf("deliver %s: %w", n.Kind, err)
	}
	metrics.Notification(string(n.Kind), "delivered")
	d.logger.Debug("Notification delivered", "kind", n.Kind, "event_id", n.Event.ID, "recipients", len(items))
	return nil
}

// resolve expands explicit recipients and the role audience into users,
// dropping duplicates. Emails without a profile are skipped.
func (d *Deliverer) resolve(ctx context.Context, n models.Notification) ([]models.Recipient, error) {
	seen := map[uuid.UUID]bool{}
	var out []models.Recipient
	add := func(u *models.User) {
		if seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, models.Recipient{UserID: u.ID, Email: u.Email})
	}

	for _, r := range n.Recipients {
		switch {
		case r.UserID != uuid.Nil:
			u, err := d.directory.GetUser(ctx, r.UserID, "")
			if errors.Is(err, models.ErrNotFound) {
				add(&models.User{ID: r.UserID, Email: r.Email})
				continue
			}
			if err != nil {
				return nil, err
			}
			add(u)
		case r.Email != "":
			u, err := d.directory.FindUserByEmail(ctx, r.Email)
			if errors.Is(err, models.ErrNotFound) {
				d.logger.Warn("No profile for notification email", "email", r.Email, "kind", n.Kind)
				continue
			}
			if err != nil {
				return nil, err
			}
			add(u)
		}
	}

	if n.RecipientRole != "" {
		users, err := d.directory.ListUsersByRole(ctx, n.RecipientRole, n.RecipientDepartment)
		if err != nil {
			return nil, fmt.Errorf("resolve %s holders: %w", n.RecipientRole, err)
		}
		for i := range users {
			add(&users[i])
		}
	}
	return out, nil
}

// Inline delivers on a goroutine so callers never wait on the directory or
// the inbox. Used when no queue is configured. Wait drains pending deliveries.
type Inline struct {
	deliverer *Deliverer
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewInline(deliverer *Deliverer, logger *slog.Logger) *Inline {
	return &Inline{deliverer: deliverer, logger: logger}
}

func (i *Inline) Enqueue(ctx context.Context, n models.Notification) error {
	ctx = context.WithoutCancel(ctx)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := i.deliverer.Deliver(ctx, n); err != nil {
			i.logger.Error("Failed to deliver notification",
				"kind", n.Kind,
				"event_id", n.Event.ID,
				"error", err,
			)
		}
	}()
	return nil
}

func (i *Inline) Wait() {
	i.wg.Wait()
}

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, title, description, start_time, end_time, creator_id, venue_id,
	advisor_name, advisor_email, advisor_phone, organization_name, guest_count,
	handles_food, uses_institutional_funds, external_guests,
	status, current_approver_id, created_at, updated_at`

type EventPostgresRepo struct {
	db DBTX
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.StartTime,
		&e.EndTime,
		&e.CreatorID,
		&e.VenueID,
		&e.AdvisorName,
		&e.AdvisorEmail,
		&e.AdvisorPhone,
		&e.OrganizationName,
		&e.GuestCount,
		&e.HandlesFood,
		&e.UsesInstitutionalFunds,
		&e.ExternalGuests,
		&e.Status,
		&e.CurrentApproverID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func statusStrings(statuses []EventStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *EventPostgresRepo) Create(ctx context.Context, e *Event) error {
	const query = `
INSERT INTO events (
	id, title, description, start_time, end_time, creator_id, venue_id,
	advisor_name, advisor_email, advisor_phone, organization_name, guest_count,
	handles_food, uses_institutional_funds, external_guests,
	status, current_approver_id, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
`
	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.Title,
		e.Description,
		e.StartTime,
		e.EndTime,
		e.CreatorID,
		e.VenueID,
		e.AdvisorName,
		e.AdvisorEmail,
		e.AdvisorPhone,
		e.OrganizationName,
		e.GuestCount,
		e.HandlesFood,
		e.UsesInstitutionalFunds,
		e.ExternalGuests,
		string(e.Status),
		e.CurrentApproverID,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	for i := range e.Categories {
		if err := r.linkCategory(ctx, e.ID, &e.Categories[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventPostgresRepo) linkCategory(ctx context.Context, eventID uuid.UUID, c *Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	const upsert = `
INSERT INTO categories (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`
	if err := r.db.QueryRow(ctx, upsert, c.ID, c.Name).Scan(&c.ID); err != nil {
		return fmt.Errorf("upsert category %q: %w", c.Name, err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO event_categories (event_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("link category %q: %w", c.Name, err)
	}
	return nil
}

func (r *EventPostgresRepo) categories(ctx context.Context, eventID uuid.UUID) ([]Category, error) {
	rows, err := r.db.Query(ctx, `
SELECT c.id, c.name
FROM categories c
JOIN event_categories ec ON ec.category_id = c.id
WHERE ec.event_id = $1
ORDER BY c.name
`, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

func (r *EventPostgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "event "+id.String())
	}
	if e.Categories, err = r.categories(ctx, id); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return e, nil
}

func (r *EventPostgresRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "event "+id.String())
	}
	return e, nil
}

func (r *EventPostgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus, approverID *uuid.UUID, at time.Time) error {
	const query = `
UPDATE events
SET status = $2,
	current_approver_id = COALESCE($3, current_approver_id),
	updated_at = $4
WHERE id = $1
`
	tag, err := r.db.Exec(ctx, query, id, string(status), approverID, at)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *EventPostgresRepo) FindOverlapping(ctx context.Context, venueID *uuid.UUID, iv Interval, statuses []EventStatus, excludeID uuid.UUID) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
FROM events
WHERE ($1::uuid IS NULL OR venue_id = $1)
	AND status = ANY($2)
	AND start_time < $4
	AND end_time > $3
	AND id <> $5
ORDER BY venue_id, start_time
`
	rows, err := r.db.Query(ctx, query, venueID, statusStrings(statuses), iv.Start, iv.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping events: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventPostgresRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE creator_id = $1 ORDER BY start_time DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by creator: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventPostgresRepo) GetCompletionView(ctx context.Context, id uuid.UUID) (*CompletionView, error) {
	var v CompletionView
	err := r.db.QueryRow(ctx, `SELECT id, status, end_time FROM events WHERE id = $1`, id).
		Scan(&v.ID, &v.Status, &v.EndTime)
	if err != nil {
		return nil, notFound(err, "event "+id.String())
	}
	return &v, nil
}

func (r *EventPostgresRepo) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const query = `
UPDATE events
SET status = $2, updated_at = $4
WHERE id = $1 AND status = $3 AND end_time < $4
`
	tag, err := r.db.Exec(ctx, query, id, string(StatusCompleted), string(StatusApproved), now)
	if err != nil {
		return false, fmt.Errorf("complete event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventPostgresRepo) ListCompletable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM events WHERE status = $1 AND end_time < $2 ORDER BY end_time LIMIT $3`,
		string(StatusApproved), now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list completable events: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

type HistoryPostgresRepo struct {
	db DBTX
}

func (r *HistoryPostgresRepo) Append(ctx context.Context, h *EventHistory) error {
	const query = `
INSERT INTO event_history (id, event_id, approver_id, action, comment, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := r.db.Exec(ctx, query,
		h.ID, h.EventID, h.ApproverID, string(h.Action), h.Comment, string(h.Status), h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event history: %w", err)
	}
	return nil
}

func (r *HistoryPostgresRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventHistory, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, event_id, approver_id, action, comment, status, created_at
FROM event_history
WHERE event_id = $1
ORDER BY created_at, id
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EventHistory, error) {
		var h EventHistory
		err := row.Scan(&h.ID, &h.EventID, &h.ApproverID, &h.Action, &h.Comment, &h.Status, &h.CreatedAt)
		return h, err
	})
}

type DocumentPostgresRepo struct {
	db DBTX
}

func (r *DocumentPostgresRepo) Add(ctx context.Context, d *EventDocument) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO event_documents (id, event_id, uploader_id, file_name, url, public_id, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, d.ID, d.EventID, d.UploaderID, d.FileName, d.URL, d.PublicID, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert event document: %w", err)
	}
	return nil
}

func (r *DocumentPostgresRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventDocument, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, event_id, uploader_id, file_name, url, public_id, uploaded_at
FROM event_documents
WHERE event_id = $1
ORDER BY uploaded_at
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event documents: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EventDocument, error) {
		var d EventDocument
		err := row.Scan(&d.ID, &d.EventID, &d.UploaderID, &d.FileName, &d.URL, &d.PublicID, &d.UploadedAt)
		return d, err
	})
}

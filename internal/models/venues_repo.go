package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const venueColumns = `id, name, code, capacity, test_capacity, features, department_id,
	description, created_at, updated_at`

type VenuePostgresRepo struct {
	db DBTX
}

func scanVenue(row pgx.Row) (*Venue, error) {
	var v Venue
	var features string
	err := row.Scan(
		&v.ID,
		&v.Name,
		&v.Code,
		&v.Capacity,
		&v.TestCapacity,
		&features,
		&v.DepartmentID,
		&v.Description,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if v.Features, err = ParseFeatures(features); err != nil {
		return nil, fmt.Errorf("venue %s: %w", v.Code, err)
	}
	return &v, nil
}

func (r *VenuePostgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	v, err := scanVenue(r.db.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "venue "+id.String())
	}
	windows, err := r.availability(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	v.Availability = windows[id]
	return v, nil
}

func (r *VenuePostgresRepo) GetByCode(ctx context.Context, code string) (*Venue, error) {
	v, err := scanVenue(r.db.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE code = $1`, code))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("venue %q", code))
	}
	windows, err := r.availability(ctx, []uuid.UUID{v.ID})
	if err != nil {
		return nil, err
	}
	v.Availability = windows[v.ID]
	return v, nil
}

func (r *VenuePostgresRepo) List(ctx context.Context) ([]Venue, error) {
	rows, err := r.db.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get venues: %w", err)
	}
	defer rows.Close()

	var venues []Venue
	var ids []uuid.UUID
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, *v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	windows, err := r.availability(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range venues {
		venues[i].Availability = windows[venues[i].ID]
	}
	return venues, nil
}

func (r *VenuePostgresRepo) availability(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]VenueAvailability, error) {
	out := make(map[uuid.UUID][]VenueAvailability, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
SELECT venue_id, day, opens_at, closes_at
FROM venue_availability
WHERE venue_id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("load venue availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a VenueAvailability
		var day string
		if err := rows.Scan(&a.VenueID, &day, &a.OpensAt, &a.ClosesAt); err != nil {
			return nil, err
		}
		if a.Day, err = ParseWeekday(day); err != nil {
			return nil, err
		}
		out[a.VenueID] = append(out[a.VenueID], a)
	}
	return out, rows.Err()
}

func (r *VenuePostgresRepo) UpsertByCode(ctx context.Context, v *Venue) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	const query = `
INSERT INTO venues (id, name, code, capacity, test_capacity, features, department_id, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO UPDATE SET
	name = EXCLUDED.name,
	capacity = EXCLUDED.capacity,
	test_capacity = EXCLUDED.test_capacity,
	features = EXCLUDED.features,
	department_id = EXCLUDED.department_id,
	updated_at = EXCLUDED.updated_at
RETURNING id, description, created_at, updated_at
`
	err := r.db.QueryRow(ctx, query,
		v.ID,
		v.Name,
		v.Code,
		v.Capacity,
		v.TestCapacity,
		v.Features.String(),
		v.DepartmentID,
		v.Description,
		v.CreatedAt,
		v.UpdatedAt,
	).Scan(&v.ID, &v.Description, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert venue %s: %w", v.Code, err)
	}
	return nil
}

func (r *VenuePostgresRepo) ReplaceAvailability(ctx context.Context, venueID uuid.UUID, windows []VenueAvailability, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE venues SET updated_at = $2 WHERE id = $1`, venueID, at)
	if err != nil {
		return fmt.Errorf("touch venue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM venue_availability WHERE venue_id = $1`, venueID); err != nil {
		return fmt.Errorf("clear venue availability: %w", err)
	}
	for _, w := range windows {
		_, err := r.db.Exec(ctx, `
INSERT INTO venue_availability (venue_id, day, opens_at, closes_at)
VALUES ($1, $2, $3, $4)
`, venueID, w.Day.String(), w.OpensAt, w.ClosesAt)
		if err != nil {
			return fmt.Errorf("insert %s window: %w", w.Day, err)
		}
	}
	return nil
}

func (r *VenuePostgresRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM venues`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count venues: %w", err)
	}
	return n, nil
}

type DepartmentPostgresRepo struct {
	db DBTX
}

func (r *DepartmentPostgresRepo) GetByName(ctx context.Context, name string) (*Department, error) {
	var d Department
	err := r.db.QueryRow(ctx, `SELECT id, name FROM departments WHERE name = $1`, name).Scan(&d.ID, &d.Name)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("department %q", name))
	}
	return &d, nil
}

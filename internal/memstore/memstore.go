// Package memstore keeps every repository in memory. Transactions run on a
// private copy of the data that replaces the live copy only on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
)

type state struct {
	events      map[uuid.UUID]models.Event
	history     []models.EventHistory
	venues      map[uuid.UUID]models.Venue
	departments map[uuid.UUID]models.Department
	documents   []models.EventDocument
}

func newState() *state {
	return &state{
		events:      map[uuid.UUID]models.Event{},
		venues:      map[uuid.UUID]models.Venue{},
		departments: map[uuid.UUID]models.Department{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, e := range s.events {
		c.events[id] = copyEvent(e)
	}
	for id, v := range s.venues {
		c.venues[id] = copyVenue(v)
	}
	for id, d := range s.departments {
		c.departments[id] = d
	}
	c.history = append([]models.EventHistory(nil), s.history...)
	c.documents = append([]models.EventDocument(nil), s.documents...)
	return c
}

func copyEvent(e models.Event) models.Event {
	e.Categories = append([]models.Category(nil), e.Categories...)
	if e.CurrentApproverID != nil {
		id := *e.CurrentApproverID
		e.CurrentApproverID = &id
	}
	return e
}

func copyVenue(v models.Venue) models.Venue {
	v.Availability = append([]models.VenueAvailability(nil), v.Availability...)
	return v
}

// Store implements models.Store. Transactions are serialized, which gives the
// same outcome as row locks for the workloads exercised in tests.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ models.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// runner executes fn against some state.
type runner func(fn func(st *state) error) error

func (s *Store) locked(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Repos() models.TxRepositories {
	return reposFor(s.locked)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos models.TxRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	direct := func(f func(st *state) error) error { return f(work) }
	if err := fn(ctx, reposFor(direct)); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, repos models.TxRepositories) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	direct := func(f func(st *state) error) error { return f(snapshot) }
	return fn(ctx, reposFor(direct))
}

func reposFor(run runner) models.TxRepositories {
	return models.TxRepositories{
		Events:      eventRepo{run},
		History:     historyRepo{run},
		Venues:      venueRepo{run},
		Departments: departmentRepo{run},
		Documents:   documentRepo{run},
	}
}

// AddDepartment seeds a department and returns it with its ID set.
func (s *Store) AddDepartment(name string) models.Department {
	d := models.Department{ID: uuid.New(), Name: name}
	_ = s.locked(func(st *state) error {
		st.departments[d.ID] = d
		return nil
	})
	return d
}

// AddVenue seeds a venue, assigning an ID when missing.
func (s *Store) AddVenue(v models.Venue) models.Venue {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	for i := range v.Availability {
		v.Availability[i].VenueID = v.ID
	}
	_ = s.locked(func(st *state) error {
		st.venues[v.ID] = copyVenue(v)
		return nil
	})
	return v
}

// AddEvent seeds an event as is, bypassing every workflow rule.
func (s *Store) AddEvent(e models.Event) models.Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_ = s.locked(func(st *state) error {
		st.events[e.ID] = copyEvent(e)
		return nil
	})
	return e
}

// Venue returns the committed copy of a venue.
func (s *Store) Venue(id uuid.UUID) (models.Venue, bool) {
	var (
		v  models.Venue
		ok bool
	)
	_ = s.locked(func(st *state) error {
		v, ok = st.venues[id]
		v = copyVenue(v)
		return nil
	})
	return v, ok
}

// Event returns the committed copy of an event.
func (s *Store) Event(id uuid.UUID) (models.Event, bool) {
	var (
		e  models.Event
		ok bool
	)
	_ = s.locked(func(st *state) error {
		e, ok = st.events[id]
		e = copyEvent(e)
		return nil
	})
	return e, ok
}

type eventRepo struct{ run runner }

func (r eventRepo) Create(ctx context.Context, event *models.Event) error {
	return r.run(func(st *state) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if _, exists := st.events[event.ID]; exists {
			return fmt.Errorf("event %s already exists", event.ID)
		}
		for i := range event.Categories {
			if event.Categories[i].ID == uuid.Nil {
				event.Categories[i].ID = uuid.New()
			}
		}
		st.events[event.ID] = copyEvent(*event)
		return nil
	})
}

func (r eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var out *models.Event
	err := r.run(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("event %s: %w", id, models.ErrNotFound)
		}
		e = copyEvent(e)
		out = &e
		return nil
	})
	return out, err
}

func (r eventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.GetByID(ctx, id)
}

func (r eventRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus, approverID *uuid.UUID, at time.Time) error {
	return r.run(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("event %s: %w", id, models.ErrNotFound)
		}
		e.Status = status
		e.UpdatedAt = at
		if approverID != nil {
			a := *approverID
			e.CurrentApproverID = &a
		}
		st.events[id] = e
		return nil
	})
}

func (r eventRepo) FindOverlapping(ctx context.Context, venueID *uuid.UUID, iv models.Interval, statuses []models.EventStatus, excludeID uuid.UUID) ([]models.Event, error) {
	wanted := make(map[models.EventStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []models.Event
	err := r.run(func(st *state) error {
		for _, e := range st.events {
			if e.ID == excludeID || !wanted[e.Status] {
				continue
			}
			if venueID != nil && e.VenueID != *venueID {
				continue
			}
			if e.StartTime.Before(iv.End) && e.EndTime.After(iv.Start) {
				out = append(out, copyEvent(e))
			}
		}
		return nil
	})
	sortByStart(out)
	return out, err
}

func (r eventRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	err := r.run(func(st *state) error {
		for _, e := range st.events {
			if e.CreatorID == creatorID {
				out = append(out, copyEvent(e))
			}
		}
		return nil
	})
	sortByStart(out)
	return out, err
}

func (r eventRepo) GetCompletionView(ctx context.Context, id uuid.UUID) (*models.CompletionView, error) {
	var out *models.CompletionView
	err := r.run(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("event %s: %w", id, models.ErrNotFound)
		}
		out = &models.CompletionView{ID: e.ID, Status: e.Status, EndTime: e.EndTime}
		return nil
	})
	return out, err
}

func (r eventRepo) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	changed := false
	err := r.run(func(st *state) error {
		e, ok := st.events[id]
		if !ok || e.Status != models.StatusApproved || !e.EndTime.Before(now) {
			return nil
		}
		e.Status = models.StatusCompleted
		e.UpdatedAt = now
		st.events[id] = e
		changed = true
		return nil
	})
	return changed, err
}

func (r eventRepo) ListCompletable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var found []models.Event
	err := r.run(func(st *state) error {
		for _, e := range st.events {
			if e.Status == models.StatusApproved && e.EndTime.Before(now) {
				found = append(found, e)
			}
		}
		return nil
	})
	sort.Slice(found, func(i, j int) bool { return found[i].EndTime.Before(found[j].EndTime) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	ids := make([]uuid.UUID, len(found))
	for i, e := range found {
		ids[i] = e.ID
	}
	return ids, err
}

func sortByStart(events []models.Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
}

type historyRepo struct{ run runner }

func (r historyRepo) Append(ctx context.Context, entry *models.EventHistory) error {
	return r.run(func(st *state) error {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r historyRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventHistory, error) {
	var out []models.EventHistory
	err := r.run(func(st *state) error {
		for _, h := range st.history {
			if h.EventID == eventID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

type venueRepo struct{ run runner }

func (r venueRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	var out *models.Venue
	err := r.run(func(st *state) error {
		v, ok := st.venues[id]
		if !ok {
			return fmt.Errorf("venue %s: %w", id, models.ErrNotFound)
		}
		v = copyVenue(v)
		out = &v
		return nil
	})
	return out, err
}

func (r venueRepo) List(ctx context.Context) ([]models.Venue, error) {
	var out []models.Venue
	err := r.run(func(st *state) error {
		for _, v := range st.venues {
			out = append(out, copyVenue(v))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r venueRepo) GetByCode(ctx context.Context, code string) (*models.Venue, error) {
	var out *models.Venue
	err := r.run(func(st *state) error {
		for _, v := range st.venues {
			if v.Code == code {
				v = copyVenue(v)
				out = &v
				return nil
			}
		}
		return fmt.Errorf("venue %q: %w", code, models.ErrNotFound)
	})
	return out, err
}

// UpsertByCode stores the caller's timestamps as given, like the SQL upsert.
func (r venueRepo) UpsertByCode(ctx context.Context, venue *models.Venue) error {
	return r.run(func(st *state) error {
		for id, existing := range st.venues {
			if existing.Code != venue.Code {
				continue
			}
			existing.Name = venue.Name
			existing.Capacity = venue.Capacity
			existing.TestCapacity = venue.TestCapacity
			existing.Features = venue.Features
			existing.DepartmentID = venue.DepartmentID
			existing.UpdatedAt = venue.UpdatedAt
			st.venues[id] = existing
			*venue = copyVenue(existing)
			return nil
		}
		if venue.ID == uuid.Nil {
			venue.ID = uuid.New()
		}
		st.venues[venue.ID] = copyVenue(*venue)
		return nil
	})
}

func (r venueRepo) ReplaceAvailability(ctx context.Context, venueID uuid.UUID, windows []models.VenueAvailability, at time.Time) error {
	return r.run(func(st *state) error {
		v, ok := st.venues[venueID]
		if !ok {
			return fmt.Errorf("venue %s: %w", venueID, models.ErrNotFound)
		}
		v.Availability = make([]models.VenueAvailability, len(windows))
		for i, w := range windows {
			w.VenueID = venueID
			v.Availability[i] = w
		}
		v.UpdatedAt = at
		st.venues[venueID] = v
		return nil
	})
}

func (r venueRepo) Count(ctx context.Context) (int, error) {
	n := 0
	err := r.run(func(st *state) error {
		n = len(st.venues)
		return nil
	})
	return n, err
}

type departmentRepo struct{ run runner }

func (r departmentRepo) GetByName(ctx context.Context, name string) (*models.Department, error) {
	var out *models.Department
	err := r.run(func(st *state) error {
		for _, d := range st.departments {
			if d.Name == name {
				d := d
				out = &d
				return nil
			}
		}
		return fmt.Errorf("department %q: %w", name, models.ErrNotFound)
	})
	return out, err
}

type documentRepo struct{ run runner }

func (r documentRepo) Add(ctx context.Context, doc *models.EventDocument) error {
	return r.run(func(st *state) error {
		if _, ok := st.events[doc.EventID]; !ok {
			return fmt.Errorf("event %s: %w", doc.EventID, models.ErrNotFound)
		}
		st.documents = append(st.documents, *doc)
		return nil
	})
}

func (r documentRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventDocument, error) {
	var out []models.EventDocument
	err := r.run(func(st *state) error {
		for _, d := range st.documents {
			if d.EventID == eventID {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

// Directory is an in-memory profile directory.
type Directory struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

var _ models.Directory = (*Directory)(nil)

func NewDirectory(users ...models.User) *Directory {
	d := &Directory{users: map[uuid.UUID]models.User{}}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

func (d *Directory) Put(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	d.users[u.ID] = u
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	return &u, nil
}

func (d *Directory) ListUsersByRole(ctx context.Context, role models.Role, departmentID *uuid.UUID) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.User
	for _, u := range d.users {
		if !u.Actor().HasRole(role) {
			continue
		}
		if departmentID != nil && (u.DepartmentID == nil || *u.DepartmentID != *departmentID) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", email, models.ErrNotFound)
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
)

type AvailabilityService struct {
	store models.Store
	loc   *time.Location
}

// NewAvailabilityService evaluates weekly windows in loc, the campus timezone.
func NewAvailabilityService(store models.Store, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{store: store, loc: loc}
}

func (s *AvailabilityService) Location() *time.Location {
	return s.loc
}

// ConflictsWith keeps the blocking events overlapping iv, skipping excludeID.
func ConflictsWith(existing []models.Event, iv models.Interval, excludeID uuid.UUID) []models.Event {
	var out []models.Event
	for _, e := range existing {
		if e.ID == excludeID || !e.Status.IsBlocking() {
			continue
		}
		if iv.Overlaps(e.Interval()) {
			out = append(out, e)
		}
	}
	return out
}

// IsFullyOpen checks the venue's weekly windows in campus time.
func (s *AvailabilityService) IsFullyOpen(venue *models.Venue, iv models.Interval) bool {
	return venue.Schedule().IsFullyOpen(iv.Start.In(s.loc), iv.End.In(s.loc))
}

func (s *AvailabilityService) IsOpenAt(venue *models.Venue, at time.Time) bool {
	return venue.Schedule().IsOpenAt(at.In(s.loc))
}

func (s *AvailabilityService) conflicts(ctx context.Context, repos models.TxRepositories, venueID uuid.UUID, iv models.Interval, excludeID uuid.UUID, statuses []models.EventStatus) ([]models.Event, error) {
	found, err := repos.Events.FindOverlapping(ctx, &venueID, iv, statuses, excludeID)
	if err != nil {
		return nil, err
	}
	return ConflictsWith(found, iv, excludeID), nil
}

// HasConflict reports whether another blocking event on the venue overlaps iv.
func (s *AvailabilityService) HasConflict(ctx context.Context, venueID uuid.UUID, iv models.Interval, excludeID uuid.UUID) (bool, []models.Event, error) {
	if !iv.Valid() {
		return false, nil, invalid("end must be after start", "start", "end")
	}
	var found []models.Event
	err := s.store.ReadOnly(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		found, err = s.conflicts(ctx, repos, venueID, iv, excludeID, models.BlockingStatuses())
		return err
	})
	if err != nil {
		return false, nil, fmt.Errorf("conflict check: %w", err)
	}
	return len(found) > 0, found, nil
}

// AvailableBetween lists every venue open for all of iv with no blocking
// booking overlapping it. Computed from a fresh snapshot on every call.
func (s *AvailabilityService) AvailableBetween(ctx context.Context, iv models.Interval) ([]models.Venue, error) {
	if !iv.Valid() {
		return nil, invalid("end must be after start", "start", "end")
	}

	var available []models.Venue
	err := s.store.ReadOnly(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		venues, err := repos.Venues.List(ctx)
		if err != nil {
			return err
		}
		busy, err := repos.Events.FindOverlapping(ctx, nil, iv, models.BlockingStatuses(), uuid.Nil)
		if err != nil {
			return err
		}

		booked := make(map[uuid.UUID]bool, len(busy))
		for _, e := range ConflictsWith(busy, iv, uuid.Nil) {
			booked[e.VenueID] = true
		}

		for i := range venues {
			v := &venues[i]
			if booked[v.ID] || !s.IsFullyOpen(v, iv) {
				continue
			}
			available = append(available, *v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("available venues: %w", err)
	}
	return available, nil
}

// ConflictsFor returns the blocking events colliding with an existing event.
func (s *AvailabilityService) ConflictsFor(ctx context.Context, eventID uuid.UUID) ([]models.Event, error) {
	var found []models.Event
	err := s.store.ReadOnly(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		ev, err := repos.Events.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		found, err = s.conflicts(ctx, repos, ev.VenueID, ev.Interval(), ev.ID, models.BlockingStatuses())
		return err
	})
	return found, err
}

func (s *AvailabilityService) ListVenues(ctx context.Context) ([]models.Venue, error) {
	return s.store.Repos().Venues.List(ctx)
}

func (s *AvailabilityService) GetVenue(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	return s.store.Repos().Venues.GetByID(ctx, id)
}

// VenueBookings returns the approved and completed events of a venue in iv.
func (s *AvailabilityService) VenueBookings(ctx context.Context, venueID uuid.UUID, iv models.Interval) (*models.Venue, []models.Event, error) {
	if !iv.Valid() {
		return nil, nil, invalid("end must be after start", "from", "to")
	}
	var venue *models.Venue
	var events []models.Event
	err := s.store.ReadOnly(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if venue, err = repos.Venues.GetByID(ctx, venueID); err != nil {
			return err
		}
		events, err = repos.Events.FindOverlapping(ctx, &venueID, iv,
			[]models.EventStatus{models.StatusApproved, models.StatusCompleted}, uuid.Nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return venue, events, nil
}

// checkPlacement validates a new booking against the venue inside repos' transaction.
func (s *AvailabilityService) checkPlacement(ctx context.Context, repos models.TxRepositories, venue *models.Venue, iv models.Interval, guests int) error {
	if guests > venue.Capacity {
		return invalid(fmt.Sprintf("guest count exceeds venue capacity of %d", venue.Capacity), "guest_count")
	}
	if !s.IsFullyOpen(venue, iv) {
		return invalid("venue is not open for the whole requested interval", "start_time", "end_time")
	}
	found, err := s.conflicts(ctx, repos, venue.ID, iv, uuid.Nil, models.BlockingStatuses())
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return &ConflictError{Conflicts: found}
	}
	return nil
}

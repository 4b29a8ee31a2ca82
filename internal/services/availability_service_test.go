package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictsWith(t *testing.T) {
	iv := models.Interval{Start: at(monday, 10), End: at(monday, 12)}
	self := uuid.New()
	existing := []models.Event{
		{ID: self, Status: models.StatusApproved, StartTime: at(monday, 10), EndTime: at(monday, 12)},
		{ID: uuid.New(), Status: models.StatusPendingAdvisor, StartTime: at(monday, 11), EndTime: at(monday, 13)},
		{ID: uuid.New(), Status: models.StatusWithdrawn, StartTime: at(monday, 10), EndTime: at(monday, 12)},
		{ID: uuid.New(), Status: models.StatusApproved, StartTime: at(monday, 12), EndTime: at(monday, 13)},
	}

	got := ConflictsWith(existing, iv, self)
	require.Len(t, got, 1)
	assert.Equal(t, existing[1].ID, got[0].ID)
}

func TestHasConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	booked := f.seed(models.StatusCompleted, at(monday, 14), at(monday, 16))

	tests := []struct {
		name  string
		iv    models.Interval
		want  bool
		error bool
	}{
		{"overlap", models.Interval{Start: at(monday, 15), End: at(monday, 17)}, true, false},
		{"ends where booking starts", models.Interval{Start: at(monday, 12), End: at(monday, 14)}, false, false},
		{"starts where booking ends", models.Interval{Start: at(monday, 16), End: at(monday, 18)}, false, false},
		{"inverted", models.Interval{Start: at(monday, 16), End: at(monday, 15)}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := f.availability.HasConflict(ctx, f.venue.ID, tt.iv, uuid.Nil)
			if tt.error {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.Equal(t, booked.ID, found[0].ID)
			}
		})
	}

	got, _, err := f.availability.HasConflict(ctx, f.venue.ID, booked.Interval(), booked.ID)
	require.NoError(t, err)
	assert.False(t, got, "an event never conflicts with itself")
}

func TestAvailableBetween(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lab := f.store.AddVenue(models.Venue{
		Name:         "Lab",
		Code:         "LAB-2",
		Capacity:     20,
		DepartmentID: f.dept.ID,
		Availability: []models.VenueAvailability{{
			Day:      models.Weekday(time.Monday),
			OpensAt:  models.MustTimeOfDay("09:00"),
			ClosesAt: models.MustTimeOfDay("17:00"),
		}},
	})
	f.store.AddVenue(models.Venue{Name: "Closed Annex", Code: "ANX-3", DepartmentID: f.dept.ID})

	ids := func(venues []models.Venue) []uuid.UUID {
		out := make([]uuid.UUID, len(venues))
		for i, v := range venues {
			out[i] = v.ID
		}
		return out
	}

	got, err := f.availability.AvailableBetween(ctx, models.Interval{Start: at(monday, 10), End: at(monday, 12)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.venue.ID, lab.ID}, ids(got))

	f.seed(models.StatusPendingDSCA, at(monday, 11), at(monday, 12))
	got, err = f.availability.AvailableBetween(ctx, models.Interval{Start: at(monday, 10), End: at(monday, 12)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{lab.ID}, ids(got))

	// Evening is outside the lab's window.
	got, err = f.availability.AvailableBetween(ctx, models.Interval{Start: at(monday, 18), End: at(monday, 20)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.venue.ID}, ids(got))

	_, err = f.availability.AvailableBetween(ctx, models.Interval{Start: at(monday, 12), End: at(monday, 12)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVenueBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	approved := f.seed(models.StatusApproved, at(monday, 10), at(monday, 12))
	f.seed(models.StatusPendingDSCA, at(monday, 13), at(monday, 14))
	done := f.seed(models.StatusCompleted, at(nextMonday, 10), at(nextMonday, 12))

	venue, events, err := f.availability.VenueBookings(ctx, f.venue.ID, models.Interval{Start: monday, End: nextMonday.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, f.venue.Code, venue.Code)
	require.Len(t, events, 2)
	assert.Equal(t, approved.ID, events[0].ID)
	assert.Equal(t, done.ID, events[1].ID)
}

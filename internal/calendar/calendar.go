// Package calendar renders venue bookings as an iCalendar feed.
package calendar

import (
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/joshua-takyi/eventflow/internal/models"
)

const productID = "-//eventflow//Venue Bookings//EN"

// VenueFeed builds a calendar with one VEVENT per booking. Completed events
// are marked COMPLETED, everything else CONFIRMED.
func VenueFeed(venue *models.Venue, bookings []models.Event, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(venue.Name)
	cal.SetXWRCalName(venue.Name + " (" + venue.Code + ")")

	for _, b := range bookings {
		ev := cal.AddEvent(b.ID.String() + "@eventflow")
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(b.CreatedAt)
		ev.SetModifiedAt(b.UpdatedAt)
		ev.SetStartAt(b.StartTime)
		ev.SetEndAt(b.EndTime)
		ev.SetSummary(b.Title)
		ev.SetLocation(venue.Name)
		if b.OrganizationName != "" {
			ev.SetDescription("Organised by " + b.OrganizationName)
		}
		for _, c := range b.Categories {
			ev.AddCategory(c.Name)
		}
		if b.Status == models.StatusCompleted {
			ev.SetStatus(ics.ObjectStatusCompleted)
		} else {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return cal
}

func WriteVenueFeed(w io.Writer, venue *models.Venue, bookings []models.Event, stamp time.Time) error {
	return VenueFeed(venue, bookings, stamp).SerializeTo(w)
}

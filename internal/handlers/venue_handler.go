package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventflow/internal/calendar"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/importer"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/joshua-takyi/eventflow/internal/services"
)

const (
	calendarLookback = 30 * 24 * time.Hour
	calendarHorizon  = 365 * 24 * time.Hour
)

func ListVenues(av *services.AvailabilityService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		venues, err := av.ListVenues(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(venues, len(venues)))
	}
}

func GetVenue(av *services.AvailabilityService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		venue, err := av.GetVenue(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(venue, "Venue retrieved"))
	}
}

// AvailableVenues answers GET /venues/available?start=...&end=... with RFC3339 bounds.
func AvailableVenues(av *services.AvailabilityService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		iv, ok := queryInterval(c, "start", "end")
		if !ok {
			return
		}
		venues, err := av.AvailableBetween(c.Request.Context(), iv)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(venues, len(venues)))
	}
}

// VenueCalendar serves approved and completed bookings as text/calendar.
// Without from/to it covers the last 30 days and the next year.
func VenueCalendar(av *services.AvailabilityService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		now := time.Now()
		iv := models.Interval{Start: now.Add(-calendarLookback), End: now.Add(calendarHorizon)}
		if c.Query("from") != "" || c.Query("to") != "" {
			if iv, ok = queryInterval(c, "from", "to"); !ok {
				return
			}
		}

		venue, bookings, err := av.VenueBookings(c.Request.Context(), id, iv)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.Header("Content-Type", "text/calendar; charset=utf-8")
		c.Header("Content-Disposition", `inline; filename="`+venue.Code+`.ics"`)
		c.Status(http.StatusOK)
		if err := calendar.WriteVenueFeed(c.Writer, venue, bookings, now); err != nil {
			_ = c.Error(err)
		}
	}
}

type availabilityRequest struct {
	Availability []models.VenueAvailability `json:"availability"`
}

// SetVenueAvailability replaces the weekly windows of one venue.
func SetVenueAvailability(vs *services.VenueService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req availabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
			return
		}

		venue, err := vs.SetAvailability(c.Request.Context(), actor, id, req.Availability)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(venue, "Venue availability updated"))
	}
}

// ImportVenues accepts a JSON array of rows or a multipart CSV/XLSX upload.
func ImportVenues(im *services.ImportService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		rows, ok := importRows(c, logger)
		if !ok {
			return
		}

		venues, err := im.UpdateOrCreateFromImportData(c.Request.Context(), rows, actor.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(venues, len(venues)))
	}
}

// ImportAvailability takes code/day/opens_at/closes_at rows in the same
// shapes as ImportVenues.
func ImportAvailability(vs *services.VenueService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		rows, ok := importRows(c, logger)
		if !ok {
			return
		}

		venues, err := vs.ImportAvailability(c.Request.Context(), rows, actor.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(venues, len(venues)))
	}
}

func importRows(c *gin.Context, logger *slog.Logger) ([]map[string]any, bool) {
	var rows []map[string]any
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse("file is required", []string{"file"}))
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, logger, err)
			return nil, false
		}
		defer f.Close()
		if rows, err = importer.Read(fh.Filename, f); err != nil {
			c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse(err.Error(), []string{"file"}))
			return nil, false
		}
		return rows, true
	}
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
		return nil, false
	}
	return rows, true
}

func queryInterval(c *gin.Context, startKey, endKey string) (models.Interval, bool) {
	start, err := time.Parse(time.RFC3339, c.Query(startKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse(startKey+" must be an RFC3339 timestamp", []string{startKey}))
		return models.Interval{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query(endKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse(endKey+" must be an RFC3339 timestamp", []string{endKey}))
		return models.Interval{}, false
	}
	return models.Interval{Start: start, End: end}, true
}

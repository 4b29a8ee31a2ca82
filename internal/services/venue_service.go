package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
)

// AvailabilityImportKeys is the exact attribute set of a weekly window row.
var AvailabilityImportKeys = []string{"code", "day", "opens_at", "closes_at"}

// VenueService maintains the weekly opening windows of venues.
type VenueService struct {
	store  models.Store
	audit  AuditSink
	clock  Clock
	logger *slog.Logger
}

func NewVenueService(store models.Store, audit AuditSink, clock Clock, logger *slog.Logger) *VenueService {
	if clock == nil {
		clock = time.Now
	}
	return &VenueService{store: store, audit: audit, clock: clock, logger: logger}
}

// SetAvailability replaces every window of the venue. An empty list closes
// the venue on all days.
func (s *VenueService) SetAvailability(ctx context.Context, actor models.Actor, venueID uuid.UUID, windows []models.VenueAvailability) (*models.Venue, error) {
	if !actor.HasRole(models.RoleSystemAdmin) {
		return nil, deny("only a system admin can change venue availability")
	}
	windows, err := normalizeWindows(windows)
	if err != nil {
		return nil, err
	}

	var venue *models.Venue
	err = s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		if err := repos.Venues.ReplaceAvailability(ctx, venueID, windows, s.clock()); err != nil {
			return err
		}
		var err error
		venue, err = repos.Venues.GetByID(ctx, venueID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Venue availability replaced", "venue_id", venueID, "windows", len(windows), "admin_id", actor.ID)
	s.audit.LogAdminAction(ctx, actor.ID, models.AuditCategoryVenues, "set_availability", venueID.String(), map[string]any{
		"windows": len(windows),
	})
	return venue, nil
}

// ImportAvailability replaces the windows of every venue named in rows, in
// one transaction. Venues not named keep their windows.
func (s *VenueService) ImportAvailability(ctx context.Context, rows []map[string]any, actingAdmin uuid.UUID) ([]models.Venue, error) {
	venues, err := s.importAvailability(ctx, rows)
	metrics.VenueImport(metrics.Result(err))
	if err != nil {
		s.logger.Warn("Availability import rejected", "rows", len(rows), "admin_id", actingAdmin, "error", err)
		return nil, err
	}

	codes := make([]string, len(venues))
	for i, v := range venues {
		codes[i] = v.Code
	}
	s.logger.Info("Venue availability imported", "venues", len(venues), "admin_id", actingAdmin)
	s.audit.LogAdminAction(ctx, actingAdmin, models.AuditCategoryVenues, "import_availability", "venues", map[string]any{
		"count": len(venues),
		"codes": codes,
	})
	return venues, nil
}

func (s *VenueService) importAvailability(ctx context.Context, rows []map[string]any) ([]models.Venue, error) {
	if len(rows) == 0 {
		return nil, invalid("import contains no rows", "rows")
	}
	if err := checkKeySet(rows, AvailabilityImportKeys); err != nil {
		return nil, err
	}
	if err := checkNulls(rows); err != nil {
		return nil, err
	}

	var order []string
	byCode := map[string][]models.VenueAvailability{}
	for i, raw := range rows {
		code, w, err := coerceWindow(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if _, seen := byCode[code]; !seen {
			order = append(order, code)
		}
		byCode[code] = append(byCode[code], w)
	}
	for _, code := range order {
		windows, err := normalizeWindows(byCode[code])
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", code, err)
		}
		byCode[code] = windows
	}

	now := s.clock()
	out := make([]models.Venue, 0, len(order))
	err := s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		for _, code := range order {
			venue, err := repos.Venues.GetByCode(ctx, code)
			if err != nil {
				return err
			}
			if err := repos.Venues.ReplaceAvailability(ctx, venue.ID, byCode[code], now); err != nil {
				return err
			}
			if venue, err = repos.Venues.GetByID(ctx, venue.ID); err != nil {
				return err
			}
			out = append(out, *venue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func coerceWindow(raw map[string]any) (string, models.VenueAvailability, error) {
	var w models.VenueAvailability
	code, err := asString(raw, "code")
	if err != nil {
		return "", w, err
	}
	day, err := asString(raw, "day")
	if err != nil {
		return "", w, err
	}
	if w.Day, err = models.ParseWeekday(day); err != nil {
		return "", w, invalid(err.Error(), "day")
	}
	for _, f := range []struct {
		key string
		dst *models.TimeOfDay
	}{{"opens_at", &w.OpensAt}, {"closes_at", &w.ClosesAt}} {
		v, err := asString(raw, f.key)
		if err != nil {
			return "", w, err
		}
		if *f.dst, err = models.ParseTimeOfDay(v); err != nil {
			return "", w, invalid(err.Error(), f.key)
		}
	}
	return code, w, nil
}

// normalizeWindows enforces one window per weekday and sorts by day. A window
// closing before it opens runs past midnight.
func normalizeWindows(windows []models.VenueAvailability) ([]models.VenueAvailability, error) {
	seen := map[models.Weekday]bool{}
	out := make([]models.VenueAvailability, 0, len(windows))
	for _, w := range windows {
		if err := models.Validate.Struct(w); err != nil {
			return nil, validationFromStruct(err)
		}
		if seen[w.Day] {
			return nil, invalid("only one window per day is allowed: "+w.Day.String(), "day")
		}
		seen[w.Day] = true
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

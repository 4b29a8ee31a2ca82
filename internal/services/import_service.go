package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
)

// ImportKeys is the exact attribute set every import row must carry.
var ImportKeys = []string{"name", "code", "department", "features", "capacity", "test_capacity"}

// VenueImportRow is one coerced import row.
type VenueImportRow struct {
	Name         string `json:"name" validate:"required,max=255"`
	Code         string `json:"code" validate:"required,max=50"`
	Department   string `json:"department" validate:"required"`
	Features     string `json:"features" validate:"required,featurebits"`
	Capacity     int    `json:"capacity" validate:"gte=0"`
	TestCapacity int    `json:"test_capacity" validate:"gte=0"`
}

type ImportService struct {
	store  models.Store
	audit  AuditSink
	clock  Clock
	logger *slog.Logger
}

func NewImportService(store models.Store, audit AuditSink, clock Clock, logger *slog.Logger) *ImportService {
	if clock == nil {
		clock = time.Now
	}
	return &ImportService{store: store, audit: audit, clock: clock, logger: logger}
}

// UpdateOrCreateFromImportData upserts venues keyed by code in one transaction.
// Any bad row aborts the whole batch; the result keeps input order.
func (s *ImportService) UpdateOrCreateFromImportData(ctx context.Context, rows []map[string]any, actingAdmin uuid.UUID) ([]models.Venue, error) {
	venues, err := s.importRows(ctx, rows)
	metrics.VenueImport(metrics.Result(err))
	if err != nil {
		s.logger.Warn("Venue import rejected", "rows", len(rows), "admin_id", actingAdmin, "error", err)
		return nil, err
	}

	codes := make([]string, len(venues))
	for i, v := range venues {
		codes[i] = v.Code
	}
	s.logger.Info("Venues imported", "rows", len(venues), "admin_id", actingAdmin)
	s.audit.LogAdminAction(ctx, actingAdmin, models.AuditCategoryVenues, "import", "venues", map[string]any{
		"count": len(venues),
		"codes": codes,
	})
	return venues, nil
}

func (s *ImportService) importRows(ctx context.Context, rows []map[string]any) ([]models.Venue, error) {
	if len(rows) == 0 {
		return nil, invalid("import contains no rows", "rows")
	}
	if err := checkKeys(rows); err != nil {
		return nil, err
	}
	if err := checkNulls(rows); err != nil {
		return nil, err
	}

	parsed := make([]VenueImportRow, len(rows))
	for i, raw := range rows {
		row, err := coerceRow(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := models.Validate.Struct(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, validationFromStruct(err))
		}
		parsed[i] = row
	}

	now := s.clock()
	out := make([]models.Venue, 0, len(parsed))
	err := s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		departments := map[string]uuid.UUID{}
		for _, row := range parsed {
			deptID, ok := departments[row.Department]
			if !ok {
				dept, err := repos.Departments.GetByName(ctx, row.Department)
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("department %q: %w", row.Department, models.ErrNotFound)
				}
				if err != nil {
					return err
				}
				deptID = dept.ID
				departments[row.Department] = deptID
			}

			features, err := models.ParseFeatures(row.Features)
			if err != nil {
				return invalid(err.Error(), "features")
			}
			venue := models.Venue{
				Name:         row.Name,
				Code:         row.Code,
				Capacity:     row.Capacity,
				TestCapacity: row.TestCapacity,
				Features:     features,
				DepartmentID: deptID,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := models.Validate.Struct(venue); err != nil {
				return validationFromStruct(err)
			}
			if err := repos.Venues.UpsertByCode(ctx, &venue); err != nil {
				return fmt.Errorf("upsert venue %s: %w", row.Code, err)
			}
			out = append(out, venue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkKeys(rows []map[string]any) error {
	return checkKeySet(rows, ImportKeys)
}

// checkKeySet requires every row to carry exactly keys.
func checkKeySet(rows []map[string]any, keys []string) error {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	bad := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !want[k] {
				bad[k] = true
			}
		}
		for _, k := range keys {
			if _, ok := row[k]; !ok {
				bad[k] = true
			}
		}
	}
	if len(bad) > 0 {
		return invalid("invalid attribute keys", sortedKeys(bad)...)
	}
	return nil
}

func checkNulls(rows []map[string]any) error {
	bad := map[string]bool{}
	for _, row := range rows {
		for k, v := range row {
			if v == nil {
				bad[k] = true
			}
		}
	}
	if len(bad) > 0 {
		return invalid("null values are not allowed", sortedKeys(bad)...)
	}
	return nil
}

func coerceRow(raw map[string]any) (VenueImportRow, error) {
	var row VenueImportRow
	var err error
	if row.Name, err = asString(raw, "name"); err != nil {
		return row, err
	}
	if row.Code, err = asString(raw, "code"); err != nil {
		return row, err
	}
	if row.Department, err = asString(raw, "department"); err != nil {
		return row, err
	}
	if row.Features, err = asString(raw, "features"); err != nil {
		return row, err
	}
	if row.Capacity, err = asInt(raw, "capacity"); err != nil {
		return row, err
	}
	if row.TestCapacity, err = asInt(raw, "test_capacity"); err != nil {
		return row, err
	}
	return row, nil
}

func asString(raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v), nil
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), nil
	default:
		return "", invalid(key+" must be a string", key)
	}
}

// asInt accepts JSON numbers, native ints and numeric strings from files.
func asInt(raw map[string]any, key string) (int, error) {
	switch v := raw[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid(key+" must be an integer", key)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, invalid(key+" must be an integer", key)
		}
		return n, nil
	default:
		return 0, invalid(key+" must be an integer", key)
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
)

const sweepBatchSize = 200

type CompletionService struct {
	store       models.Store
	audit       AuditSink
	clock       Clock
	systemActor uuid.UUID
	logger      *slog.Logger
}

func NewCompletionService(store models.Store, audit AuditSink, clock Clock, systemActor uuid.UUID, logger *slog.Logger) *CompletionService {
	if clock == nil {
		clock = time.Now
	}
	return &CompletionService{
		store:       store,
		audit:       audit,
		clock:       clock,
		systemActor: systemActor,
		logger:      logger,
	}
}

// CompleteIfPast moves an approved event whose end time has passed to completed.
// Returns false for unknown events, other statuses, and events still running.
func (s *CompletionService) CompleteIfPast(ctx context.Context, eventID uuid.UUID) (bool, error) {
	now := s.clock()
	repos := s.store.Repos()

	view, err := repos.Events.GetCompletionView(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("completion view %s: %w", eventID, err)
	}
	if view.Status != models.StatusApproved || !view.EndTime.Before(now) {
		return false, nil
	}

	// The conditional update guards against a concurrent sweep or cancel.
	changed, err := repos.Events.MarkCompleted(ctx, eventID, now)
	if err != nil {
		return false, fmt.Errorf("mark completed %s: %w", eventID, err)
	}
	if !changed {
		return false, nil
	}

	metrics.Completed()
	s.logger.Info("Event completed", "event_id", eventID, "ended_at", view.EndTime)
	s.audit.LogAdminAction(ctx, s.systemActor, models.AuditCategoryEvents, "complete", eventTarget(eventID), map[string]any{
		"end_time": view.EndTime,
	})
	return true, nil
}

// SweepPast completes every approved event that ended before the current time.
// It returns how many events changed.
func (s *CompletionService) SweepPast(ctx context.Context) (int, error) {
	completed := 0
	for {
		ids, err := s.store.Repos().Events.ListCompletable(ctx, s.clock(), sweepBatchSize)
		if err != nil {
			return completed, fmt.Errorf("list completable: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		changed := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return completed, err
			}
			ok, err := s.CompleteIfPast(ctx, id)
			if err != nil {
				s.logger.Error("Failed to complete event", "event_id", id, "error", err)
				continue
			}
			if ok {
				changed++
			}
		}
		completed += changed
		if changed == 0 || len(ids) < sweepBatchSize {
			break
		}
	}

	if completed > 0 {
		s.logger.Info("Completion sweep finished", "completed", completed)
	}
	return completed, nil
}

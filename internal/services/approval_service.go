package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/metrics"
	"github.com/joshua-takyi/eventflow/internal/models"
)

type ApprovalService struct {
	store        models.Store
	availability *AvailabilityService
	notifier     Notifier
	audit        AuditSink
	clock        Clock
	logger       *slog.Logger
}

func NewApprovalService(
	store models.Store,
	availability *AvailabilityService,
	notifier Notifier,
	audit AuditSink,
	clock Clock,
	logger *slog.Logger,
) *ApprovalService {
	if clock == nil {
		clock = time.Now
	}
	return &ApprovalService{
		store:        store,
		availability: availability,
		notifier:     notifier,
		audit:        audit,
		clock:        clock,
		logger:       logger,
	}
}

type SubmitRequest struct {
	Title                  string    `json:"title" validate:"required,max=255"`
	Description            string    `json:"description" validate:"max=5000"`
	StartTime              time.Time `json:"start_time" validate:"required"`
	EndTime                time.Time `json:"end_time" validate:"required"`
	VenueID                uuid.UUID `json:"venue_id" validate:"required"`
	AdvisorName            string    `json:"advisor_name" validate:"max=255"`
	AdvisorEmail           string    `json:"advisor_email" validate:"omitempty,email"`
	AdvisorPhone           string    `json:"advisor_phone" validate:"max=50"`
	OrganizationName       string    `json:"organization_name" validate:"max=255"`
	GuestCount             int       `json:"guest_count" validate:"gte=0"`
	HandlesFood            bool      `json:"handles_food"`
	UsesInstitutionalFunds bool      `json:"uses_institutional_funds"`
	ExternalGuests         bool      `json:"external_guests"`
	Categories             []string  `json:"categories" validate:"dive,required,max=100"`
}

// ApprovalResult carries informational conflicts surfaced at the venue manager stage.
type ApprovalResult struct {
	Event     *models.Event  `json:"event"`
	Conflicts []models.Event `json:"conflicts,omitempty"`
}

type EventDetails struct {
	Event     *models.Event          `json:"event"`
	History   []models.EventHistory  `json:"history"`
	Documents []models.EventDocument `json:"documents"`
}

// Submit creates an event request in its initial pending stage.
func (s *ApprovalService) Submit(ctx context.Context, actor models.Actor, req SubmitRequest) (*models.Event, error) {
	if err := models.Validate.Struct(req); err != nil {
		return nil, validationFromStruct(err)
	}

	now := s.clock()
	ev := &models.Event{
		ID:                     uuid.New(),
		Title:                  strings.TrimSpace(req.Title),
		Description:            req.Description,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		CreatorID:              actor.ID,
		VenueID:                req.VenueID,
		AdvisorName:            req.AdvisorName,
		AdvisorEmail:           strings.TrimSpace(req.AdvisorEmail),
		AdvisorPhone:           req.AdvisorPhone,
		OrganizationName:       req.OrganizationName,
		GuestCount:             req.GuestCount,
		HandlesFood:            req.HandlesFood,
		UsesInstitutionalFunds: req.UsesInstitutionalFunds,
		ExternalGuests:         req.ExternalGuests,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	for _, name := range req.Categories {
		ev.Categories = append(ev.Categories, models.Category{Name: strings.TrimSpace(name)})
	}
	if err := ev.CheckTimes(); err != nil {
		return nil, invalid(err.Error(), "start_time", "end_time")
	}
	if err := models.Validate.Struct(ev); err != nil {
		return nil, validationFromStruct(err)
	}
	if !ev.StartTime.After(now) {
		return nil, invalid("start_time must be in the future", "start_time")
	}
	ev.Status = ev.InitialStatus()

	var venue *models.Venue
	err := s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if venue, err = repos.Venues.GetByID(ctx, ev.VenueID); err != nil {
			return err
		}
		if err := s.availability.checkPlacement(ctx, repos, venue, ev.Interval(), ev.GuestCount); err != nil {
			return err
		}
		return repos.Events.Create(ctx, ev)
	})
	metrics.Transition("submit", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event submitted",
		"event_id", ev.ID,
		"creator_id", actor.ID,
		"venue_id", ev.VenueID,
		"status", ev.Status,
	)
	s.notify(ctx, s.stageNotification(ev, venue))
	return ev, nil
}

// Approve signs the current stage and advances the event.
func (s *ApprovalService) Approve(ctx context.Context, actor models.Actor, eventID uuid.UUID, comment string) (*ApprovalResult, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > JustificationMax {
		return nil, invalid("comment must be at most 200 characters", "comment")
	}

	var (
		ev        *models.Event
		venue     *models.Venue
		conflicts []models.Event
		signedAt  models.EventStatus
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if ev, venue, err = s.lockForDecision(ctx, repos, actor, eventID); err != nil {
			return err
		}
		next, _ := models.NextStatus(ev.Status)

		switch {
		case ev.Status == models.StatusPendingVenueManager:
			conflicts, err = s.availability.conflicts(ctx, repos, ev.VenueID, ev.Interval(), ev.ID, models.BlockingStatuses())
			if err != nil {
				return err
			}
		case next == models.StatusApproved:
			booked, err := s.availability.conflicts(ctx, repos, ev.VenueID, ev.Interval(), ev.ID,
				[]models.EventStatus{models.StatusApproved})
			if err != nil {
				return err
			}
			if len(booked) > 0 {
				return &ConflictError{Conflicts: booked}
			}
		}

		signedAt = ev.Status
		if err := s.sign(ctx, repos, ev, actor, models.ActionApproved, comment, next, &actor.ID); err != nil {
			return err
		}
		return nil
	})
	metrics.Transition("approve", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event approved",
		"event_id", ev.ID,
		"approver_id", actor.ID,
		"from", signedAt,
		"to", ev.Status,
		"conflicts", len(conflicts),
	)
	if ev.Status == models.StatusApproved {
		s.notify(ctx, models.Notification{
			Kind:       models.NotifySanctioned,
			Event:      ev.Snapshot(),
			Recipients: []models.Recipient{{UserID: ev.CreatorID}},
		})
	} else {
		s.notify(ctx, s.stageNotification(ev, venue))
	}
	return &ApprovalResult{Event: ev, Conflicts: conflicts}, nil
}

// Reject ends a pending request on behalf of the approver of its stage.
func (s *ApprovalService) Reject(ctx context.Context, actor models.Actor, eventID uuid.UUID, justification string) (*models.Event, error) {
	justification, err := validateJustification(justification, "justification")
	if err != nil {
		return nil, err
	}

	var ev *models.Event
	err = s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if ev, _, err = s.lockForDecision(ctx, repos, actor, eventID); err != nil {
			return err
		}
		return s.sign(ctx, repos, ev, actor, models.ActionRejected, justification, models.StatusRejected, &actor.ID)
	})
	metrics.Transition("reject", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event rejected", "event_id", ev.ID, "approver_id", actor.ID)
	s.notify(ctx, models.Notification{
		Kind:          models.NotifyRejected,
		Event:         ev.Snapshot(),
		Justification: justification,
		Recipients:    []models.Recipient{{UserID: ev.CreatorID}},
	})
	return ev, nil
}

// Withdraw lets the creator pull a request that is still pending.
func (s *ApprovalService) Withdraw(ctx context.Context, actor models.Actor, eventID uuid.UUID, justification string) (*models.Event, error) {
	justification, err := validateJustification(justification, "justification")
	if err != nil {
		return nil, err
	}

	var (
		ev        *models.Event
		approvers []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if ev, err = repos.Events.GetForUpdate(ctx, eventID); err != nil {
			return err
		}
		if ev.CreatorID != actor.ID {
			return deny("only the creator can withdraw this request")
		}
		if !ev.Status.IsPending() {
			return deny(reasonProcessed)
		}
		if approvers, err = historyApprovers(ctx, repos, ev.ID); err != nil {
			return err
		}
		return s.sign(ctx, repos, ev, actor, models.ActionWithdrawn, justification, models.StatusWithdrawn, nil)
	})
	metrics.Transition("withdraw", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event withdrawn", "event_id", ev.ID, "creator_id", actor.ID)
	s.notify(ctx, models.Notification{
		Kind:          models.NotifyWithdrawn,
		Event:         ev.Snapshot(),
		Justification: justification,
		Recipients:    recipients(ev.CreatorID, approvers),
	})
	return ev, nil
}

// Cancel calls off an approved event. The creator or a system admin may cancel.
func (s *ApprovalService) Cancel(ctx context.Context, actor models.Actor, eventID uuid.UUID, justification string) (*models.Event, error) {
	justification, err := validateJustification(justification, "justification")
	if err != nil {
		return nil, err
	}

	var (
		ev        *models.Event
		approvers []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if ev, err = repos.Events.GetForUpdate(ctx, eventID); err != nil {
			return err
		}
		if ev.CreatorID != actor.ID && !actor.HasRole(models.RoleSystemAdmin) {
			return deny("only the creator can cancel this event")
		}
		if ev.Status != models.StatusApproved {
			return deny(reasonProcessed)
		}
		if approvers, err = historyApprovers(ctx, repos, ev.ID); err != nil {
			return err
		}
		return s.sign(ctx, repos, ev, actor, models.ActionCancelled, justification, models.StatusCancelled, nil)
	})
	metrics.Transition("cancel", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("Event cancelled", "event_id", ev.ID, "actor_id", actor.ID)
	if ev.CreatorID != actor.ID {
		s.audit.LogAdminAction(ctx, actor.ID, models.AuditCategoryEvents, "cancel", eventTarget(ev.ID), map[string]any{
			"justification": justification,
		})
	}
	s.notify(ctx, models.Notification{
		Kind:          models.NotifyCancelled,
		Event:         ev.Snapshot(),
		Justification: justification,
		Recipients:    recipients(ev.CreatorID, approvers),
	})
	return ev, nil
}

// Override forces an event to approved or back to the DSCA stage. It skips
// the approval gate and history, and is always audited.
func (s *ApprovalService) Override(ctx context.Context, actor models.Actor, eventID uuid.UUID, target models.EventStatus, reason string) (*models.Event, error) {
	if !actor.HasRole(models.RoleSystemAdmin) {
		return nil, deny("system-admin role required")
	}
	if target != models.StatusApproved && target != models.StatusPendingDSCA {
		return nil, invalid("override can only set approved or pending - dsca approval", "status")
	}
	reason, err := validateJustification(reason, "reason")
	if err != nil {
		return nil, err
	}

	var (
		ev   *models.Event
		from models.EventStatus
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if ev, err = repos.Events.GetForUpdate(ctx, eventID); err != nil {
			return err
		}
		from = ev.Status
		now := s.clock()
		if err := repos.Events.UpdateStatus(ctx, ev.ID, target, nil, now); err != nil {
			return err
		}
		ev.Status = target
		ev.UpdatedAt = now
		return nil
	})
	metrics.Transition("override", metrics.Result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Event status overridden",
		"event_id", ev.ID,
		"admin_id", actor.ID,
		"from", from,
		"to", target,
	)
	s.audit.LogAdminAction(ctx, actor.ID, models.AuditCategoryEvents, "override", eventTarget(ev.ID), map[string]any{
		"from":   string(from),
		"to":     string(target),
		"reason": reason,
	})
	if target == models.StatusApproved {
		s.notify(ctx, models.Notification{
			Kind:       models.NotifySanctioned,
			Event:      ev.Snapshot(),
			Recipients: []models.Recipient{{UserID: ev.CreatorID}},
		})
	}
	return ev, nil
}

// GetEvent returns the event with its history and documents to the creator,
// its approvers and admins.
func (s *ApprovalService) GetEvent(ctx context.Context, actor models.Actor, id uuid.UUID) (*EventDetails, error) {
	details := &EventDetails{}
	err := s.store.ReadOnly(ctx, func(ctx context.Context, repos models.TxRepositories) error {
		var err error
		if details.Event, err = repos.Events.GetByID(ctx, id); err != nil {
			return err
		}
		venue, err := repos.Venues.GetByID(ctx, details.Event.VenueID)
		if err != nil {
			return fmt.Errorf("load venue of event %s: %w", id, err)
		}
		if details.History, err = repos.History.ListByEvent(ctx, id); err != nil {
			return err
		}
		signers := make([]uuid.UUID, len(details.History))
		for i, h := range details.History {
			signers[i] = h.ApproverID
		}
		ev := details.Event
		if !CanView(actor, models.EventContext{
			EventID:           ev.ID,
			Status:            ev.Status,
			CreatorID:         ev.CreatorID,
			AdvisorEmail:      ev.AdvisorEmail,
			VenueID:           ev.VenueID,
			VenueDepartmentID: venue.DepartmentID,
		}, signers) {
			return deny("not allowed to view this event")
		}
		details.Documents, err = repos.Documents.ListByEvent(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *ApprovalService) ListMine(ctx context.Context, actor models.Actor) ([]models.Event, error) {
	return s.store.Repos().Events.ListByCreator(ctx, actor.ID)
}

// lockForDecision loads and locks the event, then runs the approval gate
// against the state read under the lock.
func (s *ApprovalService) lockForDecision(ctx context.Context, repos models.TxRepositories, actor models.Actor, eventID uuid.UUID) (*models.Event, *models.Venue, error) {
	ev, err := repos.Events.GetForUpdate(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	venue, err := repos.Venues.GetByID(ctx, ev.VenueID)
	if err != nil {
		return nil, nil, fmt.Errorf("load venue of event %s: %w", ev.ID, err)
	}
	decision := CanManage(actor, models.EventContext{
		EventID:           ev.ID,
		Status:            ev.Status,
		CreatorID:         ev.CreatorID,
		AdvisorEmail:      ev.AdvisorEmail,
		VenueID:           ev.VenueID,
		VenueDepartmentID: venue.DepartmentID,
	})
	if err := decision.Err(); err != nil {
		return nil, nil, err
	}
	return ev, venue, nil
}

// sign appends the history row with the status at signing, then moves the event.
func (s *ApprovalService) sign(ctx context.Context, repos models.TxRepositories, ev *models.Event, actor models.Actor, action models.HistoryAction, comment string, next models.EventStatus, approverID *uuid.UUID) error {
	now := s.clock()
	entry := &models.EventHistory{
		ID:         uuid.New(),
		EventID:    ev.ID,
		ApproverID: actor.ID,
		Action:     action,
		Comment:    comment,
		Status:     ev.Status,
		CreatedAt:  now,
	}
	if err := repos.History.Append(ctx, entry); err != nil {
		return err
	}
	if err := repos.Events.UpdateStatus(ctx, ev.ID, next, approverID, now); err != nil {
		return err
	}
	ev.Status = next
	ev.UpdatedAt = now
	if approverID != nil {
		ev.CurrentApproverID = approverID
	}
	return nil
}

// stageNotification addresses the approvers of the event's current stage.
func (s *ApprovalService) stageNotification(ev *models.Event, venue *models.Venue) models.Notification {
	n := models.Notification{
		Kind:  models.NotifyApprovalRequired,
		Event: ev.Snapshot(),
	}
	switch ev.Status {
	case models.StatusPendingAdvisor:
		n.Recipients = []models.Recipient{{Email: ev.AdvisorEmail}}
	case models.StatusPendingVenueManager:
		n.RecipientRole = models.RoleVenueManager
		if venue != nil {
			dept := venue.DepartmentID
			n.RecipientDepartment = &dept
		}
	case models.StatusPendingDSCA:
		n.RecipientRole = models.RoleEventApprover
	}
	return n
}

// notify enqueues after commit. Failures are logged and never surface.
func (s *ApprovalService) notify(ctx context.Context, n models.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock()
	}
	err := s.notifier.Enqueue(context.WithoutCancel(ctx), n)
	metrics.Notification(string(n.Kind), "enqueue_"+metrics.Result(err))
	if err != nil {
		s.logger.Error("Failed to enqueue notification",
			"kind", n.Kind,
			"event_id", n.Event.ID,
			"error", err,
		)
	}
}

func historyApprovers(ctx context.Context, repos models.TxRepositories, eventID uuid.UUID) ([]uuid.UUID, error) {
	history, err := repos.History.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, h := range history {
		if h.Action == models.ActionApproved {
			ids = append(ids, h.ApproverID)
		}
	}
	return ids, nil
}

// recipients dedupes the creator and approvers.
func recipients(creator uuid.UUID, approvers []uuid.UUID) []models.Recipient {
	seen := map[uuid.UUID]bool{creator: true}
	out := []models.Recipient{{UserID: creator}}
	for _, id := range approvers {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, models.Recipient{UserID: id})
	}
	return out
}

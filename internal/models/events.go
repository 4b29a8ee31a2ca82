package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	StatusPendingAdvisor      EventStatus = "pending - advisor approval"
	StatusPendingVenueManager EventStatus = "pending - venue manager approval"
	StatusPendingDSCA         EventStatus = "pending - dsca approval"
	StatusApproved            EventStatus = "approved"
	StatusRejected            EventStatus = "rejected"
	StatusWithdrawn           EventStatus = "withdrawn"
	StatusCancelled           EventStatus = "cancelled"
	StatusCompleted           EventStatus = "completed"
)

type Role string

const (
	RoleAdvisor       Role = "advisor"
	RoleVenueManager  Role = "venue-manager"
	RoleEventApprover Role = "event-approver"
	RoleSystemAdmin   Role = "system-admin"
)

// stageRoles maps every pending stage to the only role allowed to decide it.
var stageRoles = map[EventStatus]Role{
	StatusPendingAdvisor:      RoleAdvisor,
	StatusPendingVenueManager: RoleVenueManager,
	StatusPendingDSCA:         RoleEventApprover,
}

var nextStatus = map[EventStatus]EventStatus{
	StatusPendingAdvisor:      StatusPendingVenueManager,
	StatusPendingVenueManager: StatusPendingDSCA,
	StatusPendingDSCA:         StatusApproved,
}

// nonBlocking statuses release the venue.
var nonBlocking = map[EventStatus]bool{
	StatusRejected:  true,
	StatusWithdrawn: true,
	StatusCancelled: true,
}

func (s EventStatus) IsValid() bool {
	switch s {
	case StatusPendingAdvisor, StatusPendingVenueManager, StatusPendingDSCA,
		StatusApproved, StatusRejected, StatusWithdrawn, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s EventStatus) IsPending() bool {
	_, ok := stageRoles[s]
	return ok
}

// IsBlocking reports whether an event in this status still holds its venue slot.
func (s EventStatus) IsBlocking() bool {
	return s.IsValid() && !nonBlocking[s]
}

// RequiredRole returns the role gating the stage, or false for non-pending statuses.
func RequiredRole(s EventStatus) (Role, bool) {
	r, ok := stageRoles[s]
	return r, ok
}

// NextStatus returns the status an approval moves the event into.
func NextStatus(s EventStatus) (EventStatus, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// BlockingStatuses lists every status counted by conflict detection.
func BlockingStatuses() []EventStatus {
	return []EventStatus{
		StatusPendingAdvisor,
		StatusPendingVenueManager,
		StatusPendingDSCA,
		StatusApproved,
		StatusCompleted,
	}
}

type Category struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

type Event struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title" validate:"required,max=255"`
	Description string    `db:"description" json:"description"`
	StartTime   time.Time `db:"start_time" json:"start_time" validate:"required"`
	EndTime     time.Time `db:"end_time" json:"end_time" validate:"required,gtfield=StartTime"`
	CreatorID   uuid.UUID `db:"creator_id" json:"creator_id"`
	VenueID     uuid.UUID `db:"venue_id" json:"venue_id" validate:"required"`

	AdvisorName  string `db:"advisor_name" json:"advisor_name,omitempty"`
	AdvisorEmail string `db:"advisor_email" json:"advisor_email,omitempty" validate:"omitempty,email"`
	AdvisorPhone string `db:"advisor_phone" json:"advisor_phone,omitempty"`

	OrganizationName       string `db:"organization_name" json:"organization_name,omitempty"`
	GuestCount             int    `db:"guest_count" json:"guest_count" validate:"gte=0"`
	HandlesFood            bool   `db:"handles_food" json:"handles_food"`
	UsesInstitutionalFunds bool   `db:"uses_institutional_funds" json:"uses_institutional_funds"`
	ExternalGuests         bool   `db:"external_guests" json:"external_guests"`

	Categories []Category `json:"categories,omitempty"`

	Status            EventStatus `db:"status" json:"status"`
	CurrentApproverID *uuid.UUID  `db:"current_approver_id" json:"current_approver_id,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// Interval returns the half-open [start, end) the event occupies.
func (e *Event) Interval() Interval {
	return Interval{Start: e.StartTime, End: e.EndTime}
}

// InitialStatus picks the first stage; requests without an advisor skip straight to the venue manager.
func (e *Event) InitialStatus() EventStatus {
	if strings.TrimSpace(e.AdvisorEmail) == "" {
		return StatusPendingVenueManager
	}
	return StatusPendingAdvisor
}

// CheckTimes enforces end strictly after start.
func (e *Event) CheckTimes() error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("end_time must be after start_time")
	}
	return nil
}

// EventContext is what the approval gate needs to know about an event.
type EventContext struct {
	EventID           uuid.UUID
	Status            EventStatus
	CreatorID         uuid.UUID
	AdvisorEmail      string
	VenueID           uuid.UUID
	VenueDepartmentID uuid.UUID
}

// CompletionView is the minimal projection read by the completion rule.
type CompletionView struct {
	ID      uuid.UUID
	Status  EventStatus
	EndTime time.Time
}

// EventSnapshot is the notification-safe copy of an event.
type EventSnapshot struct {
	ID               uuid.UUID   `json:"id" bson:"id"`
	Title            string      `json:"title" bson:"title"`
	StartTime        time.Time   `json:"start_time" bson:"start_time"`
	EndTime          time.Time   `json:"end_time" bson:"end_time"`
	VenueID          uuid.UUID   `json:"venue_id" bson:"venue_id"`
	OrganizationName string      `json:"organization_name,omitempty" bson:"organization_name,omitempty"`
	Status           EventStatus `json:"status" bson:"status"`
	CreatorID        uuid.UUID   `json:"creator_id" bson:"creator_id"`
	AdvisorEmail     string      `json:"advisor_email,omitempty" bson:"advisor_email,omitempty"`
}

func (e *Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		ID:               e.ID,
		Title:            e.Title,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		VenueID:          e.VenueID,
		OrganizationName: e.OrganizationName,
		Status:           e.Status,
		CreatorID:        e.CreatorID,
		AdvisorEmail:     e.AdvisorEmail,
	}
}

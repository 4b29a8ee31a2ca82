package models

import (
	"time"

	"github.com/google/uuid"
)

type HistoryAction string

const (
	ActionApproved  HistoryAction = "approved"
	ActionRejected  HistoryAction = "rejected"
	ActionWithdrawn HistoryAction = "withdrawn"
	ActionCancelled HistoryAction = "cancelled"
)

// EventHistory is an immutable record of one decision. Status is the
// event status at the moment of signing, not the resulting status.
type EventHistory struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	EventID    uuid.UUID     `db:"event_id" json:"event_id"`
	ApproverID uuid.UUID     `db:"approver_id" json:"approver_id"`
	Action     HistoryAction `db:"action" json:"action"`
	Comment    string        `db:"comment" json:"comment,omitempty"`
	Status     EventStatus   `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

type EventDocument struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EventID    uuid.UUID `db:"event_id" json:"event_id"`
	UploaderID uuid.UUID `db:"uploader_id" json:"uploader_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	URL        string    `db:"url" json:"url"`
	PublicID   string    `db:"public_id" json:"-"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

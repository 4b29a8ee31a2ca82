package services

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
)

const (
	JustificationMin = 10
	JustificationMax = 200

	reasonProcessed = "already processed or unauthorized"
)

// Decision is the outcome of the approval gate.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func refuse(reason string) Decision { return Decision{Reason: reason} }

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return deny(d.Reason)
}

// CanManage decides whether actor may approve or reject the event at its
// current stage. It is pure and must be called again on every attempt.
func CanManage(actor models.Actor, ev models.EventContext) Decision {
	role, ok := models.RequiredRole(ev.Status)
	if !ok {
		return refuse(reasonProcessed)
	}
	if !actor.HasRole(role) {
		return refuse(reasonProcessed)
	}

	switch role {
	case models.RoleAdvisor:
		if !sameEmail(actor.Email, ev.AdvisorEmail) {
			return refuse("only the advisor named on the request can sign at this stage")
		}
	case models.RoleVenueManager:
		if !actor.InDepartment(ev.VenueDepartmentID) {
			return refuse("venue is not managed by your department")
		}
	}
	return allow()
}

// CanView decides who may read an event with its history and documents.
// Past signers keep access after the event leaves their stage.
func CanView(actor models.Actor, ev models.EventContext, signers []uuid.UUID) bool {
	switch {
	case actor.ID == ev.CreatorID:
		return true
	case actor.HasRole(models.RoleSystemAdmin), actor.HasRole(models.RoleEventApprover):
		return true
	case actor.HasRole(models.RoleVenueManager) && actor.InDepartment(ev.VenueDepartmentID):
		return true
	case actor.HasRole(models.RoleAdvisor) && sameEmail(actor.Email, ev.AdvisorEmail):
		return true
	}
	for _, id := range signers {
		if id == actor.ID {
			return true
		}
	}
	return false
}

// sameEmail compares case-insensitively. An empty address never matches.
func sameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// validateJustification checks the trimmed length in characters.
func validateJustification(text, field string) (string, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < JustificationMin || n > JustificationMax {
		return "", invalid(field+" must be between 10 and 200 characters", field)
	}
	return text, nil
}

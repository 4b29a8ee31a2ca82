package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanManage(t *testing.T) {
	dept := uuid.New()
	otherDept := uuid.New()

	advisor := models.Actor{ID: uuid.New(), Email: " Advisor@Uni.edu ", Roles: []models.Role{models.RoleAdvisor}}
	manager := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &dept}
	outsider := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &otherDept}
	noDept := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}}
	dsca := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleEventApprover}}
	admin := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleSystemAdmin}}

	ctx := func(status models.EventStatus) models.EventContext {
		return models.EventContext{
			EventID:           uuid.New(),
			Status:            status,
			AdvisorEmail:      "advisor@uni.edu",
			VenueDepartmentID: dept,
		}
	}

	tests := []struct {
		name   string
		actor  models.Actor
		status models.EventStatus
		want   bool
	}{
		{"named advisor any case", advisor, models.StatusPendingAdvisor, true},
		{"advisor at wrong stage", advisor, models.StatusPendingVenueManager, false},
		{"manager of the venue department", manager, models.StatusPendingVenueManager, true},
		{"manager of another department", outsider, models.StatusPendingVenueManager, false},
		{"manager without department", noDept, models.StatusPendingVenueManager, false},
		{"dsca at dsca stage", dsca, models.StatusPendingDSCA, true},
		{"dsca at advisor stage", dsca, models.StatusPendingAdvisor, false},
		{"admin has no stage", admin, models.StatusPendingDSCA, false},
		{"approved is final", dsca, models.StatusApproved, false},
		{"rejected is final", advisor, models.StatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanManage(tt.actor, ctx(tt.status))
			assert.Equal(t, tt.want, d.Allowed)
			if tt.want {
				assert.NoError(t, d.Err())
			} else {
				assert.ErrorIs(t, d.Err(), ErrDenied)
				assert.NotEmpty(t, d.Reason)
			}
		})
	}

	other := advisor
	other.Email = "someone.else@uni.edu"
	assert.False(t, CanManage(other, ctx(models.StatusPendingAdvisor)).Allowed)

	noEmail := advisor
	noEmail.Email = ""
	blank := ctx(models.StatusPendingAdvisor)
	blank.AdvisorEmail = "  "
	assert.False(t, CanManage(noEmail, blank).Allowed, "two empty emails must not match")
	assert.False(t, CanManage(advisor, blank).Allowed)
	assert.False(t, CanManage(noEmail, ctx(models.StatusPendingAdvisor)).Allowed)
}

func TestCanView(t *testing.T) {
	dept := uuid.New()
	creator := uuid.New()
	signer := uuid.New()
	ev := models.EventContext{
		EventID:           uuid.New(),
		Status:            models.StatusPendingDSCA,
		CreatorID:         creator,
		AdvisorEmail:      "advisor@uni.edu",
		VenueDepartmentID: dept,
	}
	otherDept := uuid.New()

	tests := []struct {
		name  string
		actor models.Actor
		want  bool
	}{
		{"creator", models.Actor{ID: creator}, true},
		{"past signer", models.Actor{ID: signer}, true},
		{"admin", models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleSystemAdmin}}, true},
		{"dsca", models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleEventApprover}}, true},
		{"venue manager", models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &dept}, true},
		{"manager elsewhere", models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &otherDept}, false},
		{"named advisor", models.Actor{ID: uuid.New(), Email: "ADVISOR@uni.edu", Roles: []models.Role{models.RoleAdvisor}}, true},
		{"other advisor", models.Actor{ID: uuid.New(), Email: "x@uni.edu", Roles: []models.Role{models.RoleAdvisor}}, false},
		{"student", models.Actor{ID: uuid.New(), Email: "student@uni.edu"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanView(tt.actor, ev, []uuid.UUID{signer}))
		})
	}
}

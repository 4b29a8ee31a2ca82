package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day time.Time, hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("starts at advisor stage and notifies the advisor", func(t *testing.T) {
		f := newFixture(t)
		ev, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
		require.NoError(t, err)

		assert.Equal(t, models.StatusPendingAdvisor, ev.Status)
		assert.Equal(t, f.creator.ID, ev.CreatorID)

		n := f.notifier.last()
		assert.Equal(t, models.NotifyApprovalRequired, n.Kind)
		assert.Equal(t, []models.Recipient{{Email: "Advisor@Uni.edu"}}, n.Recipients)
	})

	t.Run("without advisor goes to the venue manager", func(t *testing.T) {
		f := newFixture(t)
		req := f.request(at(monday, 10), at(monday, 12))
		req.AdvisorEmail = ""
		ev, err := f.approval.Submit(ctx, f.creator, req)
		require.NoError(t, err)

		assert.Equal(t, models.StatusPendingVenueManager, ev.Status)
		n := f.notifier.last()
		assert.Equal(t, models.RoleVenueManager, n.RecipientRole)
		require.NotNil(t, n.RecipientDepartment)
		assert.Equal(t, f.dept.ID, *n.RecipientDepartment)
	})

	tests := []struct {
		name    string
		mutate  func(f *fixture, r *SubmitRequest)
		wantErr error
	}{
		{"end before start", func(f *fixture, r *SubmitRequest) { r.EndTime = r.StartTime.Add(-time.Hour) }, ErrValidation},
		{"end equals start", func(f *fixture, r *SubmitRequest) { r.EndTime = r.StartTime }, ErrValidation},
		{"start in the past", func(f *fixture, r *SubmitRequest) {
			r.StartTime = testNow.Add(-time.Hour)
			r.EndTime = testNow.Add(time.Hour)
		}, ErrValidation},
		{"missing title", func(f *fixture, r *SubmitRequest) { r.Title = "" }, ErrValidation},
		{"bad advisor email", func(f *fixture, r *SubmitRequest) { r.AdvisorEmail = "not-an-email" }, ErrValidation},
		{"over capacity", func(f *fixture, r *SubmitRequest) { r.GuestCount = 101 }, ErrValidation},
		{"venue closed", func(f *fixture, r *SubmitRequest) { r.EndTime = at(monday, 23) }, ErrValidation},
		{"unknown venue", func(f *fixture, r *SubmitRequest) { r.VenueID = uuid.New() }, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request(at(monday, 10), at(monday, 12))
			tt.mutate(f, &req)

			_, err := f.approval.Submit(ctx, f.creator, req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.notifier.sent)
		})
	}

	t.Run("overlapping blocking event is a conflict", func(t *testing.T) {
		f := newFixture(t)
		existing := f.seed(models.StatusPendingDSCA, at(monday, 11), at(monday, 13))

		_, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
		require.ErrorIs(t, err, ErrConflict)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Len(t, conflict.Conflicts, 1)
		assert.Equal(t, existing.ID, conflict.Conflicts[0].ID)
	})

	t.Run("touching and released events do not conflict", func(t *testing.T) {
		f := newFixture(t)
		f.seed(models.StatusApproved, at(monday, 12), at(monday, 14))
		f.seed(models.StatusRejected, at(monday, 10), at(monday, 12))
		f.seed(models.StatusCancelled, at(monday, 10), at(monday, 12))

		_, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
		assert.NoError(t, err)
	})
}

func TestApproveFullChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ev, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
	require.NoError(t, err)

	// Wrong role for the stage.
	_, err = f.approval.Approve(ctx, f.manager, ev.ID, "")
	require.ErrorIs(t, err, ErrDenied)

	// Advisor role but not the advisor named on the request.
	other := models.Actor{ID: uuid.New(), Email: "someone@uni.edu", Roles: []models.Role{models.RoleAdvisor}}
	_, err = f.approval.Approve(ctx, other, ev.ID, "")
	require.ErrorIs(t, err, ErrDenied)

	res, err := f.approval.Approve(ctx, f.advisor, ev.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingVenueManager, res.Event.Status)
	require.NotNil(t, res.Event.CurrentApproverID)
	assert.Equal(t, f.advisor.ID, *res.Event.CurrentApproverID)

	otherDept := uuid.New()
	foreign := models.Actor{ID: uuid.New(), Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &otherDept}
	_, err = f.approval.Approve(ctx, foreign, ev.ID, "")
	require.ErrorIs(t, err, ErrDenied)

	res, err = f.approval.Approve(ctx, f.manager, ev.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingDSCA, res.Event.Status)
	assert.Equal(t, models.RoleEventApprover, f.notifier.last().RecipientRole)

	res, err = f.approval.Approve(ctx, f.dsca, ev.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Event.Status)

	n := f.notifier.last()
	assert.Equal(t, models.NotifySanctioned, n.Kind)
	assert.Equal(t, []models.Recipient{{UserID: f.creator.ID}}, n.Recipients)

	stored, ok := f.store.Event(ev.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, f.dsca.ID, *stored.CurrentApproverID)

	history := f.history(t, ev.ID)
	require.Len(t, history, 3)
	assert.Equal(t, models.StatusPendingAdvisor, history[0].Status)
	assert.Equal(t, "looks good", history[0].Comment)
	assert.Equal(t, models.StatusPendingVenueManager, history[1].Status)
	assert.Equal(t, models.StatusPendingDSCA, history[2].Status)
	for _, h := range history {
		assert.Equal(t, models.ActionApproved, h.Action)
	}

	// Nothing left to approve.
	_, err = f.approval.Approve(ctx, f.dsca, ev.ID, "")
	assert.ErrorIs(t, err, ErrDenied)
}

func TestApproveConcurrentSignsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed(models.StatusPendingAdvisor, at(monday, 10), at(monday, 12))

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		denied    int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.approval.Approve(ctx, f.advisor, ev.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, ErrDenied):
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, denied)
	assert.Len(t, f.history(t, ev.ID), 1)
}

func TestApproveConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("venue manager sees conflicts without being blocked", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingVenueManager, at(monday, 10), at(monday, 12))
		rival := f.seed(models.StatusPendingAdvisor, at(monday, 11), at(monday, 13))

		res, err := f.approval.Approve(ctx, f.manager, ev.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingDSCA, res.Event.Status)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, rival.ID, res.Conflicts[0].ID)
	})

	t.Run("final approval blocked by an approved overlap", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingDSCA, at(monday, 10), at(monday, 12))
		f.seed(models.StatusApproved, at(monday, 11), at(monday, 13))

		_, err := f.approval.Approve(ctx, f.dsca, ev.ID, "")
		require.ErrorIs(t, err, ErrConflict)

		stored, _ := f.store.Event(ev.ID)
		assert.Equal(t, models.StatusPendingDSCA, stored.Status)
		assert.Empty(t, f.history(t, ev.ID))
	})

	t.Run("final approval ignores pending overlaps", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingDSCA, at(monday, 10), at(monday, 12))
		f.seed(models.StatusPendingAdvisor, at(monday, 11), at(monday, 13))

		res, err := f.approval.Approve(ctx, f.dsca, ev.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, res.Event.Status)
	})
}

func TestApproveCommentTooLong(t *testing.T) {
	f := newFixture(t)
	ev := f.seed(models.StatusPendingAdvisor, at(monday, 10), at(monday, 12))

	_, err := f.approval.Approve(context.Background(), f.advisor, ev.ID, strings.Repeat("x", 201))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReject(t *testing.T) {
	tests := []struct {
		name          string
		justification string
		wantErr       error
	}{
		{"nine characters", "too short", ErrValidation},
		{"blank padded", "   short    ", ErrValidation},
		{"ten characters", "not viable", nil},
		{"two hundred characters", strings.Repeat("a", 200), nil},
		{"two hundred and one", strings.Repeat("a", 201), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ev := f.seed(models.StatusPendingAdvisor, at(monday, 10), at(monday, 12))

			got, err := f.approval.Reject(context.Background(), f.advisor, ev.ID, tt.justification)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, _ := f.store.Event(ev.ID)
				assert.Equal(t, models.StatusPendingAdvisor, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusRejected, got.Status)

			history := f.history(t, ev.ID)
			require.Len(t, history, 1)
			assert.Equal(t, models.ActionRejected, history[0].Action)
			assert.Equal(t, models.StatusPendingAdvisor, history[0].Status)

			n := f.notifier.last()
			assert.Equal(t, models.NotifyRejected, n.Kind)
			assert.Equal(t, strings.TrimSpace(tt.justification), n.Justification)
		})
	}

	t.Run("wrong approver", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingAdvisor, at(monday, 10), at(monday, 12))
		_, err := f.approval.Reject(context.Background(), f.dsca, ev.ID, "not this time")
		assert.ErrorIs(t, err, ErrDenied)
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("creator withdraws a pending request", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingVenueManager, at(monday, 10), at(monday, 12))

		got, err := f.approval.Withdraw(ctx, f.creator, ev.ID, "plans changed")
		require.NoError(t, err)
		assert.Equal(t, models.StatusWithdrawn, got.Status)

		// The slot is free again.
		_, err = f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
		assert.NoError(t, err)
	})

	t.Run("short justification", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingVenueManager, at(monday, 10), at(monday, 12))
		_, err := f.approval.Withdraw(ctx, f.creator, ev.ID, "nope.")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("only the creator", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingVenueManager, at(monday, 10), at(monday, 12))
		_, err := f.approval.Withdraw(ctx, f.admin, ev.ID, "plans changed")
		assert.ErrorIs(t, err, ErrDenied)
	})

	t.Run("approved events cannot be withdrawn", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusApproved, at(monday, 10), at(monday, 12))
		_, err := f.approval.Withdraw(ctx, f.creator, ev.ID, "plans changed")
		assert.ErrorIs(t, err, ErrDenied)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	approved := func(t *testing.T, f *fixture) *models.Event {
		t.Helper()
		ev, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
		require.NoError(t, err)
		for _, who := range []models.Actor{f.advisor, f.manager, f.dsca} {
			_, err := f.approval.Approve(ctx, who, ev.ID, "")
			require.NoError(t, err)
		}
		return ev
	}

	t.Run("creator cancel notifies every approver once", func(t *testing.T) {
		f := newFixture(t)
		ev := approved(t, f)

		got, err := f.approval.Cancel(ctx, f.creator, ev.ID, "speaker is ill")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)

		n := f.notifier.last()
		assert.Equal(t, models.NotifyCancelled, n.Kind)
		assert.Equal(t, []models.Recipient{
			{UserID: f.creator.ID},
			{UserID: f.advisor.ID},
			{UserID: f.manager.ID},
			{UserID: f.dsca.ID},
		}, n.Recipients)
		assert.Empty(t, f.audit.actions())
	})

	t.Run("admin cancel is audited", func(t *testing.T) {
		f := newFixture(t)
		ev := approved(t, f)

		_, err := f.approval.Cancel(ctx, f.admin, ev.ID, "venue maintenance")
		require.NoError(t, err)
		assert.Equal(t, []string{"cancel"}, f.audit.actions())
	})

	t.Run("pending events cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusPendingDSCA, at(monday, 10), at(monday, 12))
		_, err := f.approval.Cancel(ctx, f.creator, ev.ID, "speaker is ill")
		assert.ErrorIs(t, err, ErrDenied)
	})

	t.Run("strangers are denied", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusApproved, at(monday, 10), at(monday, 12))
		_, err := f.approval.Cancel(ctx, f.manager, ev.ID, "speaker is ill")
		assert.ErrorIs(t, err, ErrDenied)
	})
}

func TestOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("admin forces approval", func(t *testing.T) {
		f := newFixture(t)
		ev := f.seed(models.StatusRejected, at(monday, 10), at(monday, 12))

		got, err := f.approval.Override(ctx, f.admin, ev.ID, models.StatusApproved, "board decision 2030-14")
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status)
		assert.Empty(t, f.history(t, ev.ID))

		require.Len(t, f.audit.entries, 1)
		entry := f.audit.entries[0]
		assert.Equal(t, "override", entry.Action)
		assert.Equal(t, f.admin.ID, entry.ActorID)
		assert.Equal(t, string(models.StatusRejected), entry.Metadata["from"])
		assert.Equal(t, models.NotifySanctioned, f.notifier.last().Kind)
	})

	tests := []struct {
		name    string
		actor   func(f *fixture) models.Actor
		target  models.EventStatus
		reason  string
		wantErr error
	}{
		{"not an admin", func(f *fixture) models.Actor { return f.dsca }, models.StatusApproved, "board decision", ErrDenied},
		{"unsupported target", func(f *fixture) models.Actor { return f.admin }, models.StatusRejected, "board decision", ErrValidation},
		{"short reason", func(f *fixture) models.Actor { return f.admin }, models.StatusApproved, "because", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ev := f.seed(models.StatusPendingAdvisor, at(monday, 10), at(monday, 12))
			_, err := f.approval.Override(ctx, tt.actor(f), ev.ID, tt.target, tt.reason)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.audit.entries)
		})
	}
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = assert.AnError

	ev, err := f.approval.Submit(context.Background(), f.creator, f.request(at(monday, 10), at(monday, 12)))
	require.NoError(t, err)

	stored, ok := f.store.Event(ev.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusPendingAdvisor, stored.Status)
}

func TestGetEventAndListMine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev, err := f.approval.Submit(ctx, f.creator, f.request(at(monday, 10), at(monday, 12)))
	require.NoError(t, err)
	_, err = f.approval.Approve(ctx, f.advisor, ev.ID, "")
	require.NoError(t, err)

	details, err := f.approval.GetEvent(ctx, f.creator, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, details.Event.ID)
	assert.Len(t, details.History, 1)

	// the advisor signed, so keeps access after the stage moves on
	_, err = f.approval.GetEvent(ctx, models.Actor{ID: f.advisor.ID}, ev.ID)
	assert.NoError(t, err)
	_, err = f.approval.GetEvent(ctx, f.manager, ev.ID)
	assert.NoError(t, err)
	_, err = f.approval.GetEvent(ctx, f.admin, ev.ID)
	assert.NoError(t, err)

	stranger := models.Actor{ID: uuid.New(), Email: "stranger@uni.edu"}
	_, err = f.approval.GetEvent(ctx, stranger, ev.ID)
	assert.ErrorIs(t, err, ErrDenied)

	_, err = f.approval.GetEvent(ctx, f.creator, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := f.approval.ListMine(ctx, f.creator)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	mine, err = f.approval.ListMine(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/memstore"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memInbox struct {
	mu    sync.Mutex
	items []*models.InboxItem
	err   error
}

func (m *memInbox) DeliverInbox(ctx context.Context, items []*models.InboxItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, items...)
	return nil
}

func (m *memInbox) ListInbox(ctx context.Context, userID uuid.UUID, limit int) ([]*models.InboxItem, error) {
	return nil, nil
}

func (m *memInbox) MarkInboxRead(ctx context.Context, userID uuid.UUID, id primitive.ObjectID) error {
	return nil
}

func (m *memInbox) userIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.items))
	for i, it := range m.items {
		out[i] = it.UserID
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type people struct {
	dept                           uuid.UUID
	creator, advisor, m1, m2, away models.User
}

func newPeople() people {
	dept := uuid.New()
	other := uuid.New()
	return people{
		dept:    dept,
		creator: models.User{ID: uuid.New(), Email: "student@uni.edu"},
		advisor: models.User{ID: uuid.New(), Email: "advisor@uni.edu", Roles: []string{"advisor"}},
		m1:      models.User{ID: uuid.New(), Email: "a.manager@uni.edu", Roles: []string{"venue-manager"}, DepartmentID: &dept},
		m2:      models.User{ID: uuid.New(), Email: "b.manager@uni.edu", Roles: []string{"venue-manager", "advisor"}, DepartmentID: &dept},
		away:    models.User{ID: uuid.New(), Email: "c.manager@uni.edu", Roles: []string{"venue-manager"}, DepartmentID: &other},
	}
}

func TestDeliverResolvesAudience(t *testing.T) {
	p := newPeople()
	dir := memstore.NewDirectory(p.creator, p.advisor, p.m1, p.m2, p.away)
	unknown := uuid.New()

	tests := []struct {
		name string
		n    models.Notification
		want []string
	}{
		{
			name: "advisor by email, any case",
			n:    models.Notification{Recipients: []models.Recipient{{Email: "ADVISOR@uni.edu"}}},
			want: []string{p.advisor.ID.String()},
		},
		{
			name: "unknown email is skipped",
			n:    models.Notification{Recipients: []models.Recipient{{Email: "ghost@uni.edu"}, {UserID: p.creator.ID}}},
			want: []string{p.creator.ID.String()},
		},
		{
			name: "unknown user id still gets an inbox item",
			n:    models.Notification{Recipients: []models.Recipient{{UserID: unknown}}},
			want: []string{unknown.String()},
		},
		{
			name: "role within department",
			n:    models.Notification{RecipientRole: models.RoleVenueManager, RecipientDepartment: &p.dept},
			want: []string{p.m1.ID.String(), p.m2.ID.String()},
		},
		{
			name: "duplicates collapse",
			n: models.Notification{
				Recipients:          []models.Recipient{{UserID: p.m1.ID}, {Email: p.m1.Email}},
				RecipientRole:       models.RoleVenueManager,
				RecipientDepartment: &p.dept,
			},
			want: []string{p.m1.ID.String(), p.m2.ID.String()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbox := &memInbox{}
			d := NewDeliverer(dir, inbox, quietLogger())
			tt.n.Kind = models.NotifyApprovalRequired
			require.NoError(t, d.Deliver(context.Background(), tt.n))
			assert.Equal(t, tt.want, inbox.userIDs())
		})
	}
}

func TestDeliverNoRecipients(t *testing.T) {
	inbox := &memInbox{}
	d := NewDeliverer(memstore.NewDirectory(), inbox, quietLogger())

	err := d.Deliver(context.Background(), models.Notification{
		Kind:          models.NotifyApprovalRequired,
		RecipientRole: models.RoleEventApprover,
	})
	require.NoError(t, err)
	assert.Empty(t, inbox.items)
}

func TestInlineDoesNotSurfaceDeliveryFailure(t *testing.T) {
	p := newPeople()
	inbox := &memInbox{err: assert.AnError}
	d := NewDeliverer(memstore.NewDirectory(p.creator), inbox, quietLogger())
	inline := NewInline(d, quietLogger())

	err := inline.Enqueue(context.Background(), models.Notification{
		Kind:       models.NotifyRejected,
		Recipients: []models.Recipient{{UserID: p.creator.ID}},
	})
	inline.Wait()
	assert.NoError(t, err)
	assert.Empty(t, inbox.userIDs())
}

func TestInlineDeliversAfterCallerContextEnds(t *testing.T) {
	p := newPeople()
	inbox := &memInbox{}
	d := NewDeliverer(memstore.NewDirectory(p.creator), inbox, quietLogger())
	inline := NewInline(d, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, inline.Enqueue(ctx, models.Notification{
		Kind:       models.NotifyRejected,
		Recipients: []models.Recipient{{UserID: p.creator.ID}},
	}))
	cancel()
	inline.Wait()

	assert.Equal(t, []string{p.creator.ID.String()}, inbox.userIDs())
}

func TestDeliverInboxFailure(t *testing.T) {
	p := newPeople()
	inbox := &memInbox{err: assert.AnError}
	d := NewDeliverer(memstore.NewDirectory(p.creator), inbox, quietLogger())

	err := d.Deliver(context.Background(), models.Notification{
		Kind:       models.NotifyRejected,
		Recipients: []models.Recipient{{UserID: p.creator.ID}},
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDeliverCopiesPayload(t *testing.T) {
	p := newPeople()
	inbox := &memInbox{}
	d := NewDeliverer(memstore.NewDirectory(p.creator), inbox, quietLogger())
	created := time.Date(2030, time.January, 7, 9, 0, 0, 0, time.UTC)
	eventID := uuid.New()

	require.NoError(t, d.Deliver(context.Background(), models.Notification{
		Kind:          models.NotifyCancelled,
		Event:         models.EventSnapshot{ID: eventID, Title: "Robotics Night"},
		Justification: "speaker is ill",
		Recipients:    []models.Recipient{{UserID: p.creator.ID}},
		CreatedAt:     created,
	}))

	require.Len(t, inbox.items, 1)
	item := inbox.items[0]
	assert.Equal(t, p.creator.Email, item.Email)
	assert.Equal(t, models.NotifyCancelled, item.Kind)
	assert.Equal(t, eventID, item.Event.ID)
	assert.Equal(t, "speaker is ill", item.Justification)
	assert.Equal(t, created, item.CreatedAt)
	assert.False(t, item.Read)
}

func TestDecode(t *testing.T) {
	n := models.Notification{
		Kind:       models.NotifySanctioned,
		Event:      models.EventSnapshot{ID: uuid.New(), Title: "Robotics Night"},
		Recipients: []models.Recipient{{UserID: uuid.New()}},
	}
	payload, err := json.Marshal(n)
	require.NoError(t, err)

	got, err := decode(payload)
	require.NoError(t, err)
	assert.Equal(t, n.Kind, got.Kind)
	assert.Equal(t, n.Event.ID, got.Event.ID)
	assert.Equal(t, n.Recipients, got.Recipients)

	_, err = decode([]byte(`{"event":{}}`))
	assert.Error(t, err)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestWorkerHandle(t *testing.T) {
	p := newPeople()
	inbox := &memInbox{}
	w := NewWorker(nil, "", NewDeliverer(memstore.NewDirectory(p.creator), inbox, quietLogger()), quietLogger())
	assert.Equal(t, DefaultQueueKey, w.key)

	payload, err := json.Marshal(models.Notification{
		Kind:       models.NotifyRejected,
		Recipients: []models.Recipient{{UserID: p.creator.ID}},
	})
	require.NoError(t, err)

	w.handle(context.Background(), []byte("{broken"))
	w.handle(context.Background(), payload)
	assert.Equal(t, []string{p.creator.ID.String()}, inbox.userIDs())
}

package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/memstore"
	"github.com/joshua-takyi/eventflow/internal/models"
)

// Mondays in January 2030.
var (
	testNow    = time.Date(2030, time.January, 1, 9, 0, 0, 0, time.UTC)
	monday     = time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
	nextMonday = monday.AddDate(0, 0, 7)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Enqueue(ctx context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return models.Notification{}
	}
	return n.sent[len(n.sent)-1]
}

type auditRecord struct {
	ActorID  uuid.UUID
	Category string
	Action   string
	Target   string
	Metadata map[string]any
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditRecord
}

func (a *recordingAudit) LogAdminAction(ctx context.Context, actorID uuid.UUID, category, action, target string, metadata map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditRecord{actorID, category, action, target, metadata})
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type stubUploader struct {
	calls int
	err   error
}

func (u *stubUploader) Upload(ctx context.Context, fileName string, body io.Reader) (string, string, error) {
	u.calls++
	if u.err != nil {
		return "", "", u.err
	}
	return "https://files.example.com/" + fileName, "eventflow/documents/" + fileName, nil
}

var errUpload = errors.New("upload failed")

// fixture wires the services over an in-memory store with one department
// and one venue open 08:00-22:00 every day.
type fixture struct {
	store    *memstore.Store
	notifier *recordingNotifier
	audit    *recordingAudit
	now      time.Time

	dept  models.Department
	venue models.Venue

	availability *AvailabilityService
	approval     *ApprovalService
	completion   *CompletionService
	imports      *ImportService
	venues       *VenueService
	documents    *DocumentService

	creator, advisor, manager, dsca, admin models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
		now:      testNow,
	}
	clock := func() time.Time { return f.now }

	f.dept = f.store.AddDepartment("Engineering")
	var windows []models.VenueAvailability
	for d := time.Sunday; d <= time.Saturday; d++ {
		windows = append(windows, models.VenueAvailability{
			Day:      models.Weekday(d),
			OpensAt:  models.MustTimeOfDay("08:00"),
			ClosesAt: models.MustTimeOfDay("22:00"),
		})
	}
	f.venue = f.store.AddVenue(models.Venue{
		Name:         "Great Hall",
		Code:         "GH-1",
		Capacity:     100,
		DepartmentID: f.dept.ID,
		Availability: windows,
	})

	f.availability = NewAvailabilityService(f.store, time.UTC)
	f.approval = NewApprovalService(f.store, f.availability, f.notifier, f.audit, clock, quietLogger())
	f.completion = NewCompletionService(f.store, f.audit, clock, uuid.Nil, quietLogger())
	f.imports = NewImportService(f.store, f.audit, clock, quietLogger())
	f.venues = NewVenueService(f.store, f.audit, clock, quietLogger())
	f.documents = NewDocumentService(f.store, &stubUploader{}, clock, quietLogger())

	deptID := f.dept.ID
	f.creator = models.Actor{ID: uuid.New(), Email: "student@uni.edu"}
	f.advisor = models.Actor{ID: uuid.New(), Email: "advisor@uni.edu", Roles: []models.Role{models.RoleAdvisor}}
	f.manager = models.Actor{ID: uuid.New(), Email: "manager@uni.edu", Roles: []models.Role{models.RoleVenueManager}, DepartmentID: &deptID}
	f.dsca = models.Actor{ID: uuid.New(), Email: "dsca@uni.edu", Roles: []models.Role{models.RoleEventApprover}}
	f.admin = models.Actor{ID: uuid.New(), Email: "admin@uni.edu", Roles: []models.Role{models.RoleSystemAdmin}}
	return f
}

func (f *fixture) request(start, end time.Time) SubmitRequest {
	return SubmitRequest{
		Title:        "Robotics Night",
		StartTime:    start,
		EndTime:      end,
		VenueID:      f.venue.ID,
		AdvisorEmail: "Advisor@Uni.edu",
		GuestCount:   40,
	}
}

// seed stores an event in the given status without running any workflow rule.
func (f *fixture) seed(status models.EventStatus, start, end time.Time) models.Event {
	return f.store.AddEvent(models.Event{
		Title:        "Seeded",
		StartTime:    start,
		EndTime:      end,
		CreatorID:    f.creator.ID,
		VenueID:      f.venue.ID,
		AdvisorEmail: f.advisor.Email,
		Status:       status,
	})
}

func (f *fixture) history(t *testing.T, id uuid.UUID) []models.EventHistory {
	t.Helper()
	h, err := f.store.Repos().History.ListByEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return h
}

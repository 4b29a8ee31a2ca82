package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttach(t *testing.T) {
	creator := func(f *fixture) models.Actor { return f.creator }

	tests := []struct {
		name      string
		status    models.EventStatus
		actor     func(f *fixture) models.Actor
		fileName  string
		size      int64
		uploadErr error
		wantErr   error
	}{
		{"creator pdf", models.StatusPendingAdvisor, creator, "budget.pdf", 2048, nil, nil},
		{"admin upper-case ext", models.StatusApproved, func(f *fixture) models.Actor { return f.admin }, "Floor.PNG", 2048, nil, nil},
		{"unsupported type", models.StatusPendingAdvisor, creator, "run.exe", 2048, nil, ErrValidation},
		{"empty file", models.StatusPendingAdvisor, creator, "budget.pdf", 0, nil, ErrValidation},
		{"too large", models.StatusPendingAdvisor, creator, "big.pdf", 10<<20 + 1, nil, ErrValidation},
		{"not the creator", models.StatusPendingAdvisor, func(f *fixture) models.Actor { return f.advisor }, "budget.pdf", 2048, nil, ErrDenied},
		{"released event", models.StatusRejected, creator, "budget.pdf", 2048, nil, ErrDenied},
		{"upload failure", models.StatusPendingAdvisor, creator, "budget.pdf", 2048, errUpload, errUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			uploader := &stubUploader{err: tt.uploadErr}
			docs := NewDocumentService(f.store, uploader, func() time.Time { return f.now }, quietLogger())
			ev := f.seed(tt.status, at(monday, 10), at(monday, 12))

			doc, err := docs.Attach(ctx, tt.actor(f), ev.ID, tt.fileName, tt.size, strings.NewReader("content"))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				stored, err := f.store.Repos().Documents.ListByEvent(ctx, ev.ID)
				require.NoError(t, err)
				assert.Empty(t, stored)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, uploader.calls)
			assert.Equal(t, tt.fileName, doc.FileName)
			assert.Equal(t, "https://files.example.com/"+tt.fileName, doc.URL)

			details, err := f.approval.GetEvent(ctx, f.creator, ev.ID)
			require.NoError(t, err)
			require.Len(t, details.Documents, 1)
			assert.Equal(t, doc.ID, details.Documents[0].ID)
		})
	}
}

package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/models"
)

const maxDocumentBytes = 10 << 20

var documentExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".docx": true,
}

type DocumentService struct {
	store    models.Store
	uploader Uploader
	clock    Clock
	logger   *slog.Logger
}

func NewDocumentService(store models.Store, uploader Uploader, clock Clock, logger *slog.Logger) *DocumentService {
	if clock == nil {
		clock = time.Now
	}
	return &DocumentService{store: store, uploader: uploader, clock: clock, logger: logger}
}

// Attach uploads a supporting document for an event the actor created.
func (s *DocumentService) Attach(ctx context.Context, actor models.Actor, eventID uuid.UUID, fileName string, size int64, body io.Reader) (*models.EventDocument, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !documentExtensions[ext] {
		return nil, invalid("unsupported document type "+ext, "file")
	}
	if size <= 0 || size > maxDocumentBytes {
		return nil, invalid("document must be between 1 byte and 10MB", "file")
	}

	ev, err := s.store.Repos().Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.CreatorID != actor.ID && !actor.HasRole(models.RoleSystemAdmin) {
		return nil, deny("only the creator can attach documents")
	}
	if !ev.Status.IsBlocking() {
		return nil, deny(reasonProcessed)
	}

	url, publicID, err := s.uploader.Upload(ctx, fileName, body)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	doc := &models.EventDocument{
		ID:         uuid.New(),
		EventID:    ev.ID,
		UploaderID: actor.ID,
		FileName:   filepath.Base(fileName),
		URL:        url,
		PublicID:   publicID,
		UploadedAt: s.clock(),
	}
	if err := s.store.Repos().Documents.Add(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("Document attached", "event_id", ev.ID, "document_id", doc.ID, "uploader_id", actor.ID)
	return doc, nil
}

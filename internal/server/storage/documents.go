package storage

import (
	"context"
	"time"

	"github.com/iudanet/estisync/internal/models"
)

// Revision one accepted write together with the document it produced
type Revision struct {
	CreatedAt      time.Time
	Snapshot       *models.Document
	DocumentID     string
	IdempotencyKey string
	ActorID        string
	Changes        []models.FieldChange
	Revision       int64
}

//go:generate moq -out documentstorage_mock.go . DocumentStorage

// DocumentStorage defines interface for document persistence with revision history
type DocumentStorage interface {
	// GetDocument returns the latest revision of the document
	// Returns ErrDocumentNotFound if document was never saved
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)

	// GetRevision returns the document as of the given revision
	// Revision 0 is the empty document; returns ErrRevisionNotFound for unknown revisions
	GetRevision(ctx context.Context, documentID string, revision int64) (*models.Document, error)

	// FindByIdempotencyKey returns the write accepted under the key
	// Returns ErrRevisionNotFound if no such write exists
	FindByIdempotencyKey(ctx context.Context, documentID, key string) (*Revision, error)

	// CommitRevision stores rev.Snapshot as revision rev.Revision, only if the
	// stored revision is still rev.Revision-1. Returns ErrRevisionConflict otherwise.
	CommitRevision(ctx context.Context, rev *Revision) error
}

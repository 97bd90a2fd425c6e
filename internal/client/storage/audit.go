package storage

import (
	"context"

	"github.com/iudanet/estisync/internal/models"
)

//go:generate moq -out auditstorage_mock.go . AuditStorage

// AuditStorage defines append-only storage of conflict resolution notes
type AuditStorage interface {
	// AppendAudit appends a note to the document's audit log
	AppendAudit(ctx context.Context, note models.AuditNote) error

	// ListAudit returns notes of a document in append order
	ListAudit(ctx context.Context, documentID string) ([]models.AuditNote, error)
}

package storage

import (
	"context"
	"time"

	"github.com/iudanet/estisync/internal/models"
)

// Draft несохраненное локальное состояние документа.
// Base - последний известный серверный снимок, Local - он же с локальными правками.
type Draft struct {
	SavedAt    time.Time        `json:"saved_at"`
	Base       *models.Document `json:"base"`
	Local      *models.Document `json:"local"`
	DocumentID string           `json:"document_id"`
}

// Changes возвращает локальные правки относительно базового снимка
func (d *Draft) Changes() []models.FieldChange {
	return models.Diff(d.Base, d.Local)
}

//go:generate moq -out draftstorage_mock.go . DraftStorage

// DraftStorage defines interface for storing unsaved drafts on client
type DraftStorage interface {
	// SaveDraft stores or replaces the draft of a document
	SaveDraft(ctx context.Context, draft *Draft) error

	// GetDraft retrieves the draft of a document
	// Returns ErrDraftNotFound if there is no draft
	GetDraft(ctx context.Context, documentID string) (*Draft, error)

	// DeleteDraft removes the draft; deleting a missing draft is not an error
	DeleteDraft(ctx context.Context, documentID string) error
}

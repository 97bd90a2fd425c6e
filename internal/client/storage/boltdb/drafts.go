package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/estisync/internal/client/storage"
)

// SaveDraft stores or replaces the draft of a document
func (s *Storage) SaveDraft(ctx context.Context, draft *storage.Draft) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if draft == nil || draft.DocumentID == "" {
		return fmt.Errorf("draft without document id")
	}

	// Сериализуем черновик в JSON
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDrafts)
		if bucket == nil {
			return fmt.Errorf("drafts bucket not found")
		}
		return bucket.Put([]byte(draft.DocumentID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	return nil
}

// GetDraft retrieves the draft of a document
func (s *Storage) GetDraft(ctx context.Context, documentID string) (*storage.Draft, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var draft *storage.Draft

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDrafts)
		if bucket == nil {
			return storage.ErrDraftNotFound
		}

		data := bucket.Get([]byte(documentID))
		if data == nil {
			return storage.ErrDraftNotFound
		}

		// Десериализуем
		draft = &storage.Draft{}
		if err := json.Unmarshal(data, draft); err != nil {
			return fmt.Errorf("failed to unmarshal draft: %w", err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, storage.ErrDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	return draft, nil
}

// DeleteDraft removes the draft of a document
func (s *Storage) DeleteDraft(ctx context.Context, documentID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDrafts)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(documentID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	return nil
}

package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/estisync/internal/client/storage"
	"github.com/iudanet/estisync/internal/models"
)

// AppendAudit appends a note to the document's audit log.
// Ключи - порядковые номера bucket, поэтому курсор обходит заметки в порядке добавления.
func (s *Storage) AppendAudit(ctx context.Context, note models.AuditNote) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if note.DocumentID == "" {
		return fmt.Errorf("audit note without document id")
	}

	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal audit note: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketAudit)
		if root == nil {
			return fmt.Errorf("audit bucket not found")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(note.DocumentID))
		if err != nil {
			return fmt.Errorf("failed to create document audit bucket: %w", err)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		return bucket.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to append audit note: %w", err)
	}

	return nil
}

// ListAudit returns notes of a document in append order
func (s *Storage) ListAudit(ctx context.Context, documentID string) ([]models.AuditNote, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var notes []models.AuditNote

	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketAudit)
		if root == nil {
			return nil
		}
		bucket := root.Bucket([]byte(documentID))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var note models.AuditNote
			if err := json.Unmarshal(v, &note); err != nil {
				return fmt.Errorf("failed to unmarshal audit note: %w", err)
			}
			notes = append(notes, note)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit notes: %w", err)
	}

	return notes, nil
}

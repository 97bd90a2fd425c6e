package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/server/storage"
)

// GetDocument returns the latest revision of the document
// Returns ErrDocumentNotFound if document was never saved
func (s *Storage) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	query := s.rebind(`SELECT snapshot FROM documents WHERE id = ?`)

	var snapshot string
	err := s.db.QueryRowContext(ctx, query, documentID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return decodeDocument(snapshot)
}

// GetRevision returns the document as of the given revision
func (s *Storage) GetRevision(ctx context.Context, documentID string, revision int64) (*models.Document, error) {
	if revision == 0 {
		return models.NewDocument(documentID), nil
	}

	query := s.rebind(`
		SELECT snapshot FROM document_revisions
		WHERE document_id = ? AND revision = ?
	`)

	var snapshot string
	err := s.db.QueryRowContext(ctx, query, documentID, revision).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}

	return decodeDocument(snapshot)
}

// FindByIdempotencyKey returns the write accepted under the key
func (s *Storage) FindByIdempotencyKey(ctx context.Context, documentID, key string) (*storage.Revision, error) {
	query := s.rebind(`
		SELECT revision, actor_id, changes, snapshot, created_at
		FROM document_revisions
		WHERE document_id = ? AND idempotency_key = ?
		ORDER BY revision DESC
		LIMIT 1
	`)

	rev := &storage.Revision{DocumentID: documentID, IdempotencyKey: key}
	var changes, snapshot string
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, documentID, key).Scan(
		&rev.Revision,
		&rev.ActorID,
		&changes,
		&snapshot,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRevisionNotFound
		}
		return nil, fmt.Errorf("failed to find revision by key: %w", err)
	}

	if err := json.Unmarshal([]byte(changes), &rev.Changes); err != nil {
		return nil, fmt.Errorf("failed to decode changes: %w", err)
	}
	if rev.Snapshot, err = decodeDocument(snapshot); err != nil {
		return nil, err
	}
	rev.CreatedAt = time.Unix(createdAt, 0)
	return rev, nil
}

// CommitRevision stores rev.Snapshot as the next revision of the document.
// Проверка ревизии и запись истории выполняются в одной транзакции.
func (s *Storage) CommitRevision(ctx context.Context, rev *storage.Revision) (err error) {
	if rev.Snapshot == nil || rev.Revision < 1 {
		return fmt.Errorf("invalid revision %d", rev.Revision)
	}

	snapshot, err := json.Marshal(rev.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	changes, err := json.Marshal(rev.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	createdAt := rev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	if rev.Revision == 1 {
		res, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO documents (id, revision, snapshot, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`), rev.DocumentID, rev.Revision, string(snapshot), createdAt.Unix())
	} else {
		res, err = tx.ExecContext(ctx, s.rebind(`
			UPDATE documents
			SET revision = ?, snapshot = ?, updated_at = ?
			WHERE id = ? AND revision = ?
		`), rev.Revision, string(snapshot), createdAt.Unix(), rev.DocumentID, rev.Revision-1)
	}
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		err = storage.ErrRevisionConflict
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO document_revisions (
			document_id, revision, idempotency_key, actor_id,
			changes, snapshot, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`),
		rev.DocumentID,
		rev.Revision,
		rev.IdempotencyKey,
		rev.ActorID,
		string(changes),
		string(snapshot),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write revision history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit revision: %w", err)
	}
	return nil
}

func decodeDocument(snapshot string) (*models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(snapshot), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if doc.Entities == nil {
		doc.Entities = make(map[models.EntityKind]map[string]models.Entity)
	}
	return &doc, nil
}

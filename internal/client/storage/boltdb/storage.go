// Package boltdb keeps client-side session state (unsaved drafts and the
// conflict audit trail) in a single bbolt file.
package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/estisync/internal/client/storage"
)

// schemaVersion меняется при несовместимом изменении формата кэша
const schemaVersion uint64 = 1

// openTimeout сколько ждать, если файл держит другой процесс клиента
var openTimeout = time.Second

var (
	bucketMeta   = []byte("meta")
	bucketDrafts = []byte("drafts") // ID документа -> черновик (JSON)
	bucketAudit  = []byte("audit")  // ID документа -> вложенный bucket заметок
	keySchema    = []byte("schema")
	allBuckets   = [][]byte{bucketMeta, bucketDrafts, bucketAudit}
)

// Storage implements storage.DraftStorage and storage.AuditStorage on bbolt.
type Storage struct {
	db   *bbolt.DB
	path string
}

// New opens (or creates) the cache file at path and prepares its buckets.
func New(ctx context.Context, path string) (*Storage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	s := &Storage{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the cache file location
func (s *Storage) Path() string { return s.path }

// Close releases the file lock. Repeated calls are no-ops.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

// migrate создает bucket'ы и проверяет версию формата.
// Файл от будущей версии клиента не трогаем.
func (s *Storage) migrate() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keySchema)
		if raw == nil {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, schemaVersion)
			return meta.Put(keySchema, buf)
		}
		if len(raw) != 8 {
			return fmt.Errorf("%w: corrupt schema marker", storage.ErrUnsupportedSchema)
		}
		if v := binary.BigEndian.Uint64(raw); v > schemaVersion {
			return fmt.Errorf("%w: cache written by schema %d, this client reads up to %d",
				storage.ErrUnsupportedSchema, v, schemaVersion)
		}
		return nil
	})
}

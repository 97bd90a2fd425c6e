package boltdb

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/estisync/internal/client/storage"
)

// writeSchema подменяет маркер версии в уже закрытом файле кэша
func writeSchema(t *testing.T, path string, marker []byte) {
	t.Helper()
	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchema, marker)
	}))
}

func schemaMarker(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func TestNew_PreparesLayout(t *testing.T) {
	store := createTestStorage(t)
	assert.NotEmpty(t, store.Path())

	err := store.db.View(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			assert.NotNil(t, tx.Bucket(name), "bucket %s", name)
		}
		assert.Equal(t, schemaMarker(schemaVersion), tx.Bucket(bucketMeta).Get(keySchema))
		return nil
	})
	require.NoError(t, err)
}

func TestNew_Schema(t *testing.T) {
	tests := []struct {
		name    string
		marker  []byte
		wantErr bool
	}{
		{name: "current", marker: schemaMarker(schemaVersion)},
		{name: "older", marker: schemaMarker(0)},
		{name: "newer", marker: schemaMarker(schemaVersion + 1), wantErr: true},
		{name: "corrupt", marker: []byte("v1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "cache.db")
			store, err := New(ctx, path)
			require.NoError(t, err)
			require.NoError(t, store.Close())

			writeSchema(t, path, tt.marker)

			store, err = New(ctx, path)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrUnsupportedSchema)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestNew_ReopenKeepsDrafts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.SaveDraft(ctx, testDraft("est-7")))
	require.NoError(t, store.Close())

	store, err = New(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	draft, err := store.GetDraft(ctx, "est-7")
	require.NoError(t, err)
	assert.Equal(t, int64(4), draft.Base.Revision)
}

func TestNew_Errors(t *testing.T) {
	t.Run("bad path", func(t *testing.T) {
		store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "cache.db"))
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("held by another client", func(t *testing.T) {
		prev := openTimeout
		openTimeout = 50 * time.Millisecond
		t.Cleanup(func() { openTimeout = prev })

		path := filepath.Join(t.TempDir(), "cache.db")
		first, err := New(context.Background(), path)
		require.NoError(t, err)
		defer first.Close()

		second, err := New(context.Background(), path)
		assert.Error(t, err)
		assert.Nil(t, second)
	})
}

func TestClose_Twice(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)
}

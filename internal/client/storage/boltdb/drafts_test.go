package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/client/storage"
	"github.com/iudanet/estisync/internal/models"
)

// createTestStorage создает временное хранилище для тестов
func createTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func testDraft(docID string) *storage.Draft {
	price := models.NewPath(models.KindPricing, "p1", "price")

	base := models.NewDocument(docID)
	base.Revision = 4
	base.Put(price, &models.Value{Data: json.RawMessage(`100`), Timestamp: 1, NodeID: "a"})

	local := base.Clone()
	local.Put(price, &models.Value{Data: json.RawMessage(`120`), Timestamp: 2, NodeID: "b"})

	return &storage.Draft{
		DocumentID: docID,
		Base:       base,
		Local:      local,
		SavedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDrafts_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.GetDraft(ctx, "est-1")
	assert.True(t, errors.Is(err, storage.ErrDraftNotFound))

	draft := testDraft("est-1")
	require.NoError(t, store.SaveDraft(ctx, draft))

	got, err := store.GetDraft(ctx, "est-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Base.Revision)
	assert.True(t, draft.SavedAt.Equal(got.SavedAt))

	changes := got.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, `120`, string(changes[0].Value.Data))

	// перезапись
	draft.Local = draft.Base.Clone()
	require.NoError(t, store.SaveDraft(ctx, draft))
	got, err = store.GetDraft(ctx, "est-1")
	require.NoError(t, err)
	assert.Empty(t, got.Changes())

	require.NoError(t, store.DeleteDraft(ctx, "est-1"))
	require.NoError(t, store.DeleteDraft(ctx, "est-1"), "deleting a missing draft is fine")
	_, err = store.GetDraft(ctx, "est-1")
	assert.True(t, errors.Is(err, storage.ErrDraftNotFound))
}

func TestDrafts_Invalid(t *testing.T) {
	store := createTestStorage(t)

	assert.Error(t, store.SaveDraft(context.Background(), &storage.Draft{}))
	assert.Error(t, store.SaveDraft(context.Background(), nil))
}

func TestDrafts_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.SaveDraft(ctx, testDraft("est-1")), storage.ErrStorageClosed)
	_, err = store.GetDraft(ctx, "est-1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.DeleteDraft(ctx, "est-1"), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.AppendAudit(ctx, models.AuditNote{DocumentID: "est-1"}), storage.ErrStorageClosed)
	_, err = store.ListAudit(ctx, "est-1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/client/autosave"
	"github.com/iudanet/estisync/internal/models"
)

// conflictCapture собирает конфликты, опубликованные через OnConflict
type conflictCapture struct {
	got []*models.Conflict
	mu  sync.Mutex
}

func capture(s *Session) *conflictCapture {
	c := &conflictCapture{}
	s.OnConflict(func(cf *models.Conflict) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.got = append(c.got, cf)
	})
	return c
}

func (c *conflictCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

// setupConflict: локально price=120 и notes, на сервере другой участник
// поменял price=130 и title. Запись возвращает конфликт только по price.
func setupConflict(t *testing.T, h *harness) (priceUpdate string) {
	t.Helper()

	priceUpdate = h.mutate(t, price, `120`)
	h.mutate(t, notes, `"call first"`)
	h.srv.edit(func(d *models.Document) {
		d.Put(price, val(`130`, 50, "bob"))
		d.Put(title, val(`"Porch"`, 50, "bob"))
	})
	return priceUpdate
}

func TestSession_ConflictOverwriteLocal(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	published := capture(h.s)
	priceUpdate := setupConflict(t, h)

	err := h.s.SaveNow(context.Background())
	require.True(t, errors.Is(err, models.ErrConflictUnresolved), "got %v", err)

	c, ok := h.s.Conflict()
	require.True(t, ok)
	require.Len(t, c.Fields, 1, "only the contested path")
	f := c.Fields[0]
	assert.Equal(t, price, f.Path)
	assert.Equal(t, `100`, string(f.Base.Data))
	assert.Equal(t, `120`, string(f.Local.Data))
	assert.Equal(t, `130`, string(f.Server.Data))
	require.NotNil(t, f.Merged, "merge proposal is attached")
	assert.Contains(t, []string{`120`, `130`}, string(f.Merged.Data))
	assert.Equal(t, int64(3), c.ExpectedRevision)
	assert.Equal(t, int64(4), c.ServerRevision)

	st := h.s.Status()
	assert.Equal(t, autosave.StateConflicted, st.State)
	assert.Equal(t, c.ID, st.ConflictID)
	eventually(t, func() bool { return published.count() == 1 }, "conflict published")

	// пока конфликт не разрешен, автосохранение не работает
	h.mutate(t, qty, `4`)
	h.clk.Advance(3 * testDebounce)
	h.flush(t)
	assert.Len(t, h.backend.SaveCalls(), 1)
	assert.True(t, errors.Is(h.s.SaveNow(context.Background()), models.ErrConflictUnresolved))

	require.NoError(t, h.s.Resolve(context.Background(), models.StrategyOverwriteLocal, c))

	doc := h.s.Document()
	assert.Equal(t, `130`, lookup(doc, price), "server value installed")
	assert.Equal(t, `"Porch"`, lookup(doc, title))
	assert.Equal(t, `"call first"`, lookup(doc, notes), "uncontested local edits survive")
	assert.Equal(t, `4`, lookup(doc, qty))

	err = h.s.Rollback(context.Background(), priceUpdate)
	assert.True(t, errors.Is(err, models.ErrUpdateNotFound), "no optimistic update on price survives")

	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "resolved state saved")
	server := h.srv.snapshot()
	assert.Equal(t, int64(5), server.Revision)
	assert.Equal(t, `130`, lookup(server, price))
	assert.Equal(t, `"call first"`, lookup(server, notes))
	assert.Equal(t, `4`, lookup(server, qty))

	notesLog := h.s.AuditLog()
	require.Len(t, notesLog, 1)
	assert.Equal(t, c.ID, notesLog[0].ConflictID)
	assert.Equal(t, models.StrategyOverwriteLocal, notesLog[0].Strategy)
	assert.Equal(t, []models.Path{price}, notesLog[0].Paths)
	assert.False(t, notesLog[0].Automatic)
	assert.Equal(t, "alice", notesLog[0].ActorID)

	_, ok = h.s.Conflict()
	assert.False(t, ok)
	err = h.s.Resolve(context.Background(), models.StrategyOverwriteLocal, c)
	assert.True(t, errors.Is(err, models.ErrStaleConflict))
	assert.Equal(t, 1, published.count())
}

func TestSession_ConflictOverwriteServer(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	setupConflict(t, h)

	require.Error(t, h.s.SaveNow(context.Background()))
	c, ok := h.s.Conflict()
	require.True(t, ok)

	// правка после обнаружения конфликта тоже учитывается
	h.mutate(t, price, `125`)

	require.NoError(t, h.s.Resolve(context.Background(), models.StrategyOverwriteServer, c))
	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "resolved state saved")

	server := h.srv.snapshot()
	assert.Equal(t, `125`, lookup(server, price))
	assert.Equal(t, `"Porch"`, lookup(server, title), "server-only change kept")
	calls := h.backend.SaveCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(4), calls[1].Req.ExpectedRevision)
}

func TestSession_ConflictMergeFunc(t *testing.T) {
	merge := func(fc models.FieldConflict) *models.Value {
		return val(`125`, 99, "merge")
	}
	h := newHarness(t, baseConfig(), seedDocument(), nil, WithMergeFunc(merge))
	setupConflict(t, h)

	require.Error(t, h.s.SaveNow(context.Background()))
	c, ok := h.s.Conflict()
	require.True(t, ok)

	require.NoError(t, h.s.Resolve(context.Background(), models.StrategyMerge, c))
	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "merged state saved")
	assert.Equal(t, `125`, lookup(h.srv.snapshot(), price))
}

func TestSession_ResolveMatchingServerNeedsNoSave(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	h.mutate(t, price, `120`)
	h.srv.edit(func(d *models.Document) { d.Put(price, val(`130`, 50, "bob")) })

	require.Error(t, h.s.SaveNow(context.Background()))
	c, ok := h.s.Conflict()
	require.True(t, ok)

	require.NoError(t, h.s.Resolve(context.Background(), models.StrategyOverwriteLocal, c))
	st := h.s.Status()
	assert.Equal(t, autosave.StateClean, st.State)
	assert.Equal(t, int64(4), st.Revision)
	assert.Equal(t, 0, st.PendingUpdates)
	assert.Len(t, h.backend.SaveCalls(), 1)
}

func TestSession_ResolveRejectsBadInput(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	setupConflict(t, h)
	require.Error(t, h.s.SaveNow(context.Background()))
	c, ok := h.s.Conflict()
	require.True(t, ok)

	err := h.s.Resolve(context.Background(), "coin-flip", c)
	assert.True(t, errors.Is(err, models.ErrUnknownStrategy))

	other := c.Clone()
	other.ID = "someone-else"
	err = h.s.Resolve(context.Background(), models.StrategyOverwriteServer, other)
	assert.True(t, errors.Is(err, models.ErrStaleConflict))

	assert.Error(t, h.s.Resolve(context.Background(), models.StrategyOverwriteServer, nil))
	assert.Equal(t, autosave.StateConflicted, h.s.Status().State, "still blocked")
}

func TestSession_AutoResolve(t *testing.T) {
	cfg := baseConfig()
	cfg.DefaultStrategy = models.StrategyOverwriteServer
	h := newHarness(t, cfg, seedDocument(), nil)
	published := capture(h.s)
	setupConflict(t, h)

	require.NoError(t, h.s.SaveNow(context.Background()))

	st := h.s.Status()
	assert.Equal(t, autosave.StateClean, st.State)
	assert.Equal(t, `120`, lookup(h.srv.snapshot(), price))
	assert.Equal(t, `"Porch"`, lookup(h.srv.snapshot(), title))

	notesLog := h.s.AuditLog()
	require.Len(t, notesLog, 1)
	assert.True(t, notesLog[0].Automatic)
	assert.Equal(t, models.StrategyOverwriteServer, notesLog[0].Strategy)

	h.flush(t)
	assert.Equal(t, 0, published.count(), "nothing surfaced to the user")
}

func TestSession_AutoResolveIsBounded(t *testing.T) {
	cfg := baseConfig()
	cfg.DefaultStrategy = models.StrategyOverwriteServer
	cfg.MaxConflictRetries = 1

	var (
		mu    sync.Mutex
		saves int
	)
	h := newHarness(t, cfg, seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			mu.Lock()
			saves++
			n := saves
			mu.Unlock()
			if n == 2 {
				// другой участник успел снова поменять цену
				h.srv.edit(func(d *models.Document) { d.Put(price, val(`140`, 60, "carol")) })
			}
			return h.srv.save(ctx, documentID, req)
		}
	})
	published := capture(h.s)
	setupConflict(t, h)

	err := h.s.SaveNow(context.Background())
	require.True(t, errors.Is(err, models.ErrConflictUnresolved), "got %v", err)

	assert.Len(t, h.backend.SaveCalls(), 2, "one automatic retry")
	assert.Equal(t, autosave.StateConflicted, h.s.Status().State)
	eventually(t, func() bool { return published.count() == 1 }, "second conflict surfaced")

	c, ok := h.s.Conflict()
	require.True(t, ok)
	require.Len(t, c.Fields, 1)
	assert.Equal(t, `140`, string(c.Fields[0].Server.Data))
	assert.Len(t, h.s.AuditLog(), 1)

	h.clk.Advance(time.Minute)
	h.flush(t)
	assert.Len(t, h.backend.SaveCalls(), 2, "no save loop")
}

func TestSession_RebaseOnNonOverlappingEdits(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	published := capture(h.s)

	h.mutate(t, price, `120`)
	h.srv.edit(func(d *models.Document) { d.Put(title, val(`"Porch"`, 50, "bob")) })

	require.NoError(t, h.s.SaveNow(context.Background()))

	calls := h.backend.SaveCalls()
	require.Len(t, calls, 2, "rejected by revision, then rebased and saved")
	assert.Equal(t, int64(4), calls[1].Req.ExpectedRevision)
	assert.Equal(t, []models.Path{price}, models.ChangedPaths(calls[1].Req.Changes))

	doc := h.s.Document()
	assert.Equal(t, `120`, lookup(doc, price))
	assert.Equal(t, `"Porch"`, lookup(doc, title))
	assert.Equal(t, int64(5), doc.Revision)
	assert.Equal(t, autosave.StateClean, h.s.Status().State)
	assert.Empty(t, h.s.AuditLog())

	h.flush(t)
	assert.Equal(t, 0, published.count())
}

func TestSession_ConflictSnapshotIsIsolated(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	setupConflict(t, h)
	require.Error(t, h.s.SaveNow(context.Background()))

	c, ok := h.s.Conflict()
	require.True(t, ok)
	c.Fields[0].Local.Data = json.RawMessage(`0`)
	c.ServerSnapshot.Put(price, nil)

	again, ok := h.s.Conflict()
	require.True(t, ok)
	assert.Equal(t, `120`, string(again.Fields[0].Local.Data))
	assert.Equal(t, `130`, lookup(again.ServerSnapshot, price))
}

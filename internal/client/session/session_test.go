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
	"github.com/iudanet/estisync/internal/client/storage"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/validation"
)

func TestNew_ConfigValidation(t *testing.T) {
	backend := &BackendMock{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no document", cfg: Config{ActorID: "alice"}},
		{name: "no actor", cfg: Config{DocumentID: "est-1"}},
		{name: "bad strategy", cfg: Config{DocumentID: "est-1", ActorID: "alice", DefaultStrategy: "coin-flip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, backend, nil, testLogger())
			assert.Error(t, err)
		})
	}
	assert.Empty(t, backend.LoadCalls())
}

func TestNew_LoadFailure(t *testing.T) {
	backend := &BackendMock{
		LoadFunc: func(ctx context.Context, documentID string) (*models.Document, error) {
			return nil, &models.TransportError{Op: "load", Err: errors.New("connection refused")}
		},
	}
	_, err := New(context.Background(), baseConfig(), backend, nil, testLogger())
	assert.True(t, errors.Is(err, models.ErrTransportFailure))
}

func TestSession_NewDocumentStartsEmpty(t *testing.T) {
	h := newHarness(t, baseConfig(), models.NewDocument("est-1"), nil)

	assert.Equal(t, int64(0), h.s.Document().Revision)
	assert.Empty(t, h.s.Document().Paths())

	h.mutate(t, title, `"Garage"`)
	require.NoError(t, h.s.SaveNow(context.Background()))
	assert.Equal(t, `"Garage"`, lookup(h.srv.snapshot(), title))
	assert.Equal(t, int64(1), h.s.Status().Revision)
}

func TestSession_MutateIsOptimistic(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	id := h.mutate(t, price, `120`)
	assert.NotEmpty(t, id)

	doc := h.s.Document()
	assert.Equal(t, `120`, lookup(doc, price))
	st := h.s.Status()
	assert.Equal(t, autosave.StateDirty, st.State)
	assert.True(t, st.Unsaved())
	assert.Equal(t, 1, st.PendingUpdates)
	assert.Empty(t, h.backend.SaveCalls(), "nothing saved before the debounce window")

	// снимок не связан с состоянием сессии
	doc.Put(price, val(`1`, 99, "x"))
	assert.Equal(t, `120`, lookup(h.s.Document(), price))

	// мутация уходит в транспорт через диспетчер
	eventually(t, func() bool { return len(h.transport.SendCalls()) == 1 }, "mutation emitted")
	ev := h.transport.SendCalls()[0].Ev
	assert.Equal(t, models.EventDocumentMutation, ev.Kind)
	assert.Equal(t, "alice", ev.ActorID)
	var p models.MutationPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, id, p.UpdateID)
	assert.Equal(t, price, p.Mutation.Path)
}

func TestSession_MutateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	_, err := h.s.Mutate(context.Background(), models.Path{Kind: "invoice", EntityID: "x", Field: "y"}, json.RawMessage(`1`))
	assert.True(t, errors.Is(err, models.ErrInvalidPath))

	_, err = h.s.Mutate(context.Background(), price, json.RawMessage(`{oops`))
	assert.True(t, errors.Is(err, models.ErrInvalidValue))

	assert.Equal(t, autosave.StateClean, h.s.Status().State)
}

func TestSession_ValidationRejected(t *testing.T) {
	v, err := validation.Default()
	require.NoError(t, err)

	h := newHarness(t, baseConfig(), seedDocument(), nil, WithValidator(v))

	_, err = h.s.Mutate(context.Background(), price, json.RawMessage(`-5`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidationRejected))
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Findings, 1)
	assert.Equal(t, price, verr.Findings[0].Path)

	// мутация не применена
	assert.Equal(t, `100`, lookup(h.s.Document(), price))
	st := h.s.Status()
	assert.Equal(t, autosave.StateClean, st.State)
	assert.Equal(t, 0, st.PendingUpdates)

	h.mutate(t, price, `90`)
	assert.Equal(t, `90`, lookup(h.s.Document(), price))
}

func TestSession_DebounceCoalescesMutations(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	h.mutate(t, price, `120`)
	h.clk.Advance(testDebounce / 2)
	h.mutate(t, title, `"Porch"`)
	h.clk.Advance(testDebounce / 2)
	h.flush(t)
	assert.Empty(t, h.backend.SaveCalls(), "second mutation restarted the window")

	h.clk.Advance(testDebounce / 2)
	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "saved")

	calls := h.backend.SaveCalls()
	require.Len(t, calls, 1, "exactly one save")
	req := calls[0].Req
	assert.Equal(t, int64(3), req.ExpectedRevision)
	assert.Equal(t, []models.Path{title, price}, models.ChangedPaths(req.Changes))
	assert.Equal(t, models.IdempotencyKey("alice", 3, req.Changes), req.IdempotencyKey)
	assert.Equal(t, "alice", req.ActorID)

	server := h.srv.snapshot()
	assert.Equal(t, `120`, lookup(server, price))
	assert.Equal(t, `"Porch"`, lookup(server, title))

	st := h.s.Status()
	assert.Equal(t, int64(4), st.Revision)
	assert.Equal(t, 0, st.PendingUpdates)
	assert.False(t, st.LastSaved.IsZero())

	h.clk.Advance(time.Minute)
	h.flush(t)
	assert.Len(t, h.backend.SaveCalls(), 1, "clean document is not saved again")
}

func TestSession_DebouncedAndImmediateSaveAgree(t *testing.T) {
	edits := []struct {
		path models.Path
		raw  string
	}{
		{price, `110`},
		{qty, `3`},
		{price, `115`},
		{notes, `"bring ladder"`},
		{title, `"Roof and gutters"`},
	}

	debounced := newHarness(t, baseConfig(), seedDocument(), nil)
	immediate := newHarness(t, baseConfig(), seedDocument(), nil)

	for _, e := range edits {
		debounced.mutate(t, e.path, e.raw)
		immediate.mutate(t, e.path, e.raw)
		require.NoError(t, immediate.s.SaveNow(context.Background()))
	}
	debounced.clk.Advance(testDebounce)
	eventually(t, func() bool { return debounced.state() == string(autosave.StateClean) }, "debounced save")

	// итог равен последовательному применению мутаций
	expected := seedDocument()
	for _, e := range edits {
		expected.Put(e.path, val(e.raw, 0, ""))
	}
	assert.Empty(t, models.Diff(expected, debounced.s.Document()))
	assert.Empty(t, models.Diff(expected, debounced.srv.snapshot()))
	assert.Empty(t, models.Diff(debounced.srv.snapshot(), immediate.srv.snapshot()))
	assert.Len(t, debounced.backend.SaveCalls(), 1)
	assert.Len(t, immediate.backend.SaveCalls(), len(edits))
}

func TestSession_MutationDuringSaveStaysDirty(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			if req.ExpectedRevision == 3 {
				<-release
			}
			return h.srv.save(ctx, documentID, req)
		}
	})

	h.mutate(t, price, `120`)
	h.clk.Advance(testDebounce)
	eventually(t, func() bool { return len(h.backend.SaveCalls()) == 1 }, "first save in flight")
	assert.Equal(t, autosave.StateSaving, h.s.Status().State)

	h.mutate(t, title, `"Porch"`)
	assert.Equal(t, autosave.StateSaving, h.s.Status().State, "mutations are accepted while saving")

	close(release)
	eventually(t, func() bool {
		st := h.s.Status()
		return st.State == autosave.StateDirty && st.Revision == 4
	}, "first save accepted, document still dirty")

	h.clk.Advance(testDebounce)
	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "second save persists B")

	calls := h.backend.SaveCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []models.Path{price}, models.ChangedPaths(calls[0].Req.Changes))
	assert.Equal(t, []models.Path{title}, models.ChangedPaths(calls[1].Req.Changes))
	assert.Equal(t, int64(4), calls[1].Req.ExpectedRevision)
	assert.Equal(t, `"Porch"`, lookup(h.srv.snapshot(), title))
}

func TestSession_SaveNowWaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			once.Do(func() { <-release })
			return h.srv.save(ctx, documentID, req)
		}
	})

	h.mutate(t, price, `120`)
	h.clk.Advance(testDebounce)
	eventually(t, func() bool { return len(h.backend.SaveCalls()) == 1 }, "save in flight")
	h.mutate(t, title, `"Porch"`)

	done := make(chan error, 1)
	go func() { done <- h.s.SaveNow(context.Background()) }()

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SaveNow did not return")
	}

	assert.Equal(t, autosave.StateClean, h.s.Status().State)
	assert.Len(t, h.backend.SaveCalls(), 2, "second save started immediately, not after debounce")
	assert.Equal(t, `"Porch"`, lookup(h.srv.snapshot(), title))
}

func TestSession_SaveNowWhenClean(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	require.NoError(t, h.s.SaveNow(context.Background()))
	assert.Empty(t, h.backend.SaveCalls())
}

func TestSession_SaveFailureRetriesAndRaisesIndicator(t *testing.T) {
	var (
		mu   sync.Mutex
		down = true
	)
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			mu.Lock()
			defer mu.Unlock()
			if down {
				return nil, &models.TransportError{Op: "save", StatusCode: 503, Err: errors.New("unavailable")}
			}
			return h.srv.save(ctx, documentID, req)
		}
	})

	h.mutate(t, price, `120`)
	err := h.s.SaveNow(context.Background())
	require.True(t, errors.Is(err, models.ErrTransportFailure), "got %v", err)

	st := h.s.Status()
	assert.Equal(t, autosave.StateDirty, st.State, "change is never dropped")
	assert.Equal(t, 1, st.Failures)
	assert.False(t, st.SaveError)
	assert.NotEmpty(t, st.LastError)

	// повтор на следующих тиках debounce
	for i := 2; i <= autosave.DefaultMaxFailures; i++ {
		h.clk.Advance(testDebounce)
		want := i
		eventually(t, func() bool { return h.s.Status().Failures == want }, "retry on debounce tick")
	}
	assert.True(t, h.s.Status().SaveError, "persistent indicator after bounded retries")
	assert.Equal(t, `120`, lookup(h.s.Document(), price))

	mu.Lock()
	down = false
	mu.Unlock()

	h.clk.Advance(testDebounce)
	eventually(t, func() bool { return h.state() == string(autosave.StateClean) }, "recovered")
	st = h.s.Status()
	assert.Equal(t, 0, st.Failures)
	assert.False(t, st.SaveError)
	assert.Equal(t, `120`, lookup(h.srv.snapshot(), price))
}

func TestSession_ServerValidationRejectionKeepsDirty(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			return nil, &models.ValidationError{Findings: []models.Finding{{
				Path: price, Rule: "minimum", Severity: models.SeverityError, Message: "too low",
			}}}
		}
	})

	h.mutate(t, price, `120`)
	err := h.s.SaveNow(context.Background())
	assert.True(t, errors.Is(err, models.ErrValidationRejected))
	assert.Equal(t, autosave.StateDirty, h.s.Status().State)
}

func TestSession_SaveTimeoutAndStaleResult(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			if req.ExpectedRevision == 3 && len(h.srv.requests()) == 0 {
				// бэкенд не смотрит на контекст и все-таки применяет запись
				<-release
			}
			return h.srv.save(ctx, documentID, req)
		}
	})

	h.mutate(t, price, `120`)
	done := make(chan error, 1)
	go func() { done <- h.s.SaveNow(context.Background()) }()
	eventually(t, func() bool { return len(h.backend.SaveCalls()) == 1 }, "save in flight")

	h.clk.Advance(testSaveTimeout)
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, models.ErrTransportFailure), "timeout is a transport failure: %v", err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not fail the save")
	}
	assert.Equal(t, autosave.StateDirty, h.s.Status().State)

	// опоздавший ответ игнорируется
	close(release)
	eventually(t, func() bool { return h.srv.snapshot().Revision == 4 }, "late write reached the server")
	h.flush(t)
	assert.Equal(t, int64(3), h.s.Status().Revision, "stale result ignored")
	assert.Equal(t, autosave.StateDirty, h.s.Status().State)

	// повтор видит свою же запись: конфликт ревизий без конфликтующих полей
	require.NoError(t, h.s.SaveNow(context.Background()))
	st := h.s.Status()
	assert.Equal(t, autosave.StateClean, st.State)
	assert.Equal(t, int64(4), st.Revision)
	assert.Len(t, h.srv.requests(), 2, "rebased state matched the server, nothing re-sent")
}

func TestSession_RollbackRestoresExactValue(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)
	before := h.s.Document()

	tests := []struct {
		name string
		do   func() (string, error)
	}{
		{name: "set existing", do: func() (string, error) {
			return h.s.Mutate(context.Background(), price, json.RawMessage(`120`))
		}},
		{name: "set absent", do: func() (string, error) {
			return h.s.Mutate(context.Background(), qty, json.RawMessage(`4`))
		}},
		{name: "unset", do: func() (string, error) {
			return h.s.Unset(context.Background(), title)
		}},
		{name: "delete entity", do: func() (string, error) {
			return h.s.DeleteEntity(context.Background(), price.Entity())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.do()
			require.NoError(t, err)
			require.NotEmpty(t, models.Diff(before, h.s.Document()))

			require.NoError(t, h.s.Rollback(context.Background(), id))
			after := h.s.Document()
			assert.Empty(t, models.Diff(before, after))
			for _, p := range before.Paths() {
				want, _ := before.Lookup(p)
				got, ok := after.Lookup(p)
				require.True(t, ok)
				assert.Equal(t, *want, *got, "timestamps restored too")
			}
			st := h.s.Status()
			assert.Equal(t, autosave.StateClean, st.State)
			assert.Equal(t, 0, st.PendingUpdates)
		})
	}
}

func TestSession_RollbackOfConfirmed(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	id := h.mutate(t, price, `120`)
	require.NoError(t, h.s.SaveNow(context.Background()))

	err := h.s.Rollback(context.Background(), id)
	assert.True(t, errors.Is(err, models.ErrRollbackOfConfirmed))
	assert.Equal(t, `120`, lookup(h.s.Document(), price), "state untouched")
	assert.Equal(t, autosave.StateClean, h.s.Status().State)

	err = h.s.Rollback(context.Background(), "no-such-update")
	assert.True(t, errors.Is(err, models.ErrUpdateNotFound))
}

func TestSession_RevertToBaseIsNotConfirmation(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	first := h.mutate(t, price, `120`)
	second := h.mutate(t, price, `100`)
	assert.Equal(t, autosave.StateClean, h.s.Status().State)
	assert.Equal(t, 0, h.s.Status().PendingUpdates)

	for _, id := range []string{first, second} {
		err := h.s.Rollback(context.Background(), id)
		assert.False(t, errors.Is(err, models.ErrRollbackOfConfirmed), "never confirmed by the server")
		assert.True(t, errors.Is(err, models.ErrUpdateNotFound))
	}
	assert.Empty(t, h.backend.SaveCalls())
}

func TestSession_RollbackDuringSaveIsPersisted(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	h := newHarness(t, baseConfig(), seedDocument(), func(h *harness) {
		h.backend.SaveFunc = func(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
			once.Do(func() { <-release })
			return h.srv.save(ctx, documentID, req)
		}
	})

	id := h.mutate(t, price, `120`)
	h.clk.Advance(testDebounce)
	eventually(t, func() bool { return len(h.backend.SaveCalls()) == 1 }, "save in flight")

	require.NoError(t, h.s.Rollback(context.Background(), id))
	assert.Equal(t, `100`, lookup(h.s.Document(), price))

	close(release)
	eventually(t, func() bool { return h.s.Status().Revision == 4 }, "first save accepted")
	require.NoError(t, h.s.SaveNow(context.Background()))
	assert.Equal(t, `100`, lookup(h.srv.snapshot(), price), "rollback written back")
}

func TestSession_StatusObserver(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	var (
		mu     sync.Mutex
		states []autosave.State
	)
	dispose := h.s.OnStatus(func(st Status) {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 || states[len(states)-1] != st.State {
			states = append(states, st.State)
		}
	})

	h.mutate(t, price, `120`)
	require.NoError(t, h.s.SaveNow(context.Background()))

	// начальный clean мог прийти уже после подписки
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 3 && states[len(states)-1] == autosave.StateClean
	}, "dirty, saving, clean observed")
	mu.Lock()
	seen := len(states)
	assert.Equal(t, []autosave.State{autosave.StateDirty, autosave.StateSaving, autosave.StateClean}, states[seen-3:])
	mu.Unlock()

	dispose()
	h.mutate(t, price, `130`)
	h.flush(t)
	mu.Lock()
	assert.Len(t, states, seen, "no notifications after dispose")
	mu.Unlock()
}

func TestSession_DraftRestoreAndClear(t *testing.T) {
	local := seedDocument()
	local.Put(price, val(`140`, 9, "alice"))
	draft := &storage.Draft{DocumentID: "est-1", Base: seedDocument(), Local: local}

	var (
		mu      sync.Mutex
		saved   []*storage.Draft
		deleted int
	)
	cache := &CacheMock{
		GetDraftFunc: func(ctx context.Context, documentID string) (*storage.Draft, error) {
			return draft, nil
		},
		SaveDraftFunc: func(ctx context.Context, d *storage.Draft) error {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, d)
			return nil
		},
		DeleteDraftFunc: func(ctx context.Context, documentID string) error {
			mu.Lock()
			defer mu.Unlock()
			deleted++
			return nil
		},
		ListAuditFunc: func(ctx context.Context, documentID string) ([]models.AuditNote, error) {
			return []models.AuditNote{{ID: "n-1", DocumentID: "est-1"}}, nil
		},
		AppendAuditFunc: func(ctx context.Context, note models.AuditNote) error { return nil },
	}

	h := newHarness(t, baseConfig(), seedDocument(), nil, WithCache(cache))

	assert.Equal(t, `140`, lookup(h.s.Document(), price), "unsaved edit restored")
	assert.Equal(t, autosave.StateDirty, h.s.Status().State)
	assert.Len(t, h.s.AuditLog(), 1)

	h.mutate(t, title, `"Shed"`)
	mu.Lock()
	require.NotEmpty(t, saved)
	last := saved[len(saved)-1]
	mu.Unlock()
	assert.Equal(t, `"Shed"`, lookup(last.Local, title))
	assert.Equal(t, int64(3), last.Base.Revision)

	require.NoError(t, h.s.SaveNow(context.Background()))
	assert.Equal(t, `140`, lookup(h.srv.snapshot(), price))
	mu.Lock()
	assert.Equal(t, 1, deleted, "draft cleared once clean")
	mu.Unlock()
}

func TestSession_DraftFromNewerRevisionDiscarded(t *testing.T) {
	base := seedDocument()
	base.Revision = 9
	local := base.Clone()
	local.Put(price, val(`999`, 9, "alice"))

	cache := &CacheMock{
		GetDraftFunc: func(ctx context.Context, documentID string) (*storage.Draft, error) {
			return &storage.Draft{DocumentID: documentID, Base: base, Local: local}, nil
		},
		ListAuditFunc: func(ctx context.Context, documentID string) ([]models.AuditNote, error) {
			return nil, nil
		},
	}

	h := newHarness(t, baseConfig(), seedDocument(), nil, WithCache(cache))
	assert.Equal(t, `100`, lookup(h.s.Document(), price))
	assert.Equal(t, autosave.StateClean, h.s.Status().State)
}

func TestSession_Close(t *testing.T) {
	h := newHarness(t, baseConfig(), seedDocument(), nil)

	require.NoError(t, h.s.Close())
	require.NoError(t, h.s.Close(), "idempotent")
	assert.Len(t, h.transport.CloseCalls(), 1)

	_, err := h.s.Mutate(context.Background(), price, json.RawMessage(`1`))
	assert.True(t, errors.Is(err, models.ErrSessionClosed))
	assert.True(t, errors.Is(h.s.SaveNow(context.Background()), models.ErrSessionClosed))

	var leave bool
	for _, c := range h.transport.SendCalls() {
		if c.Ev.Kind == models.EventPresenceLeave {
			leave = true
		}
	}
	assert.True(t, leave, "leave announced on close")
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/transport/memory"
	"github.com/iudanet/estisync/internal/transport/ws"
)

func eventsServer(t *testing.T) (*httptest.Server, *memory.Hub) {
	t.Helper()
	hub := memory.NewHub(setupTestLogger())
	h := NewEventsHandler(setupTestLogger(), hub, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/documents/{id}/events", h.Events)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, actor string) *ws.Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := ws.Dial(ctx, srv.URL, "est-1", actor, setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func next(t *testing.T, tr *ws.Transport) models.Event {
	t.Helper()
	select {
	case raw, ok := <-tr.Inbound():
		require.True(t, ok, "transport closed")
		var ev models.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return models.Event{}
	}
}

func TestEventsHandler_Relay(t *testing.T) {
	srv, hub := eventsServer(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	require.Eventually(t, func() bool { return hub.Peers("est-1") == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	cursor := json.RawMessage(`{"x":1,"y":2}`)

	// чужой actor и документ подменяются данными подключения
	require.NoError(t, alice.Send(ctx, models.Event{
		ID: "e1", Kind: models.EventPresenceCursor, DocumentID: "est-1", ActorID: "mallory", Payload: cursor,
	}))
	ev := next(t, bob)
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "alice", ev.ActorID)
	assert.Equal(t, "est-1", ev.DocumentID)
	assert.JSONEq(t, string(cursor), string(ev.Payload))

	// серверные сигналы от участника не рассылаются
	for _, kind := range []models.EventKind{
		models.EventDocumentUpdate, models.EventOptimisticConfirm, models.EventOptimisticRollback,
	} {
		require.NoError(t, alice.Send(ctx, models.Event{
			ID: "forged-" + string(kind), Kind: kind, DocumentID: "est-1",
			Payload: json.RawMessage(`{"update_id":"u-bob"}`),
		}))
	}
	require.NoError(t, alice.Send(ctx, models.Event{ID: "e2", Kind: models.EventPresenceTyping, DocumentID: "est-1"}))
	assert.Equal(t, "e2", next(t, bob).ID)

	// серверная рассылка доходит до всех
	require.NoError(t, hub.Broadcast(models.Event{ID: "u1", Kind: models.EventDocumentUpdate, DocumentID: "est-1"}))
	assert.Equal(t, "u1", next(t, alice).ID)
	assert.Equal(t, "u1", next(t, bob).ID)
}

func TestEventsHandler_LeaveOnDisconnect(t *testing.T) {
	srv, hub := eventsServer(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	require.Eventually(t, func() bool { return hub.Peers("est-1") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Close())

	ev := next(t, bob)
	assert.Equal(t, models.EventPresenceLeave, ev.Kind)
	assert.Equal(t, "alice", ev.ActorID)
	assert.Eventually(t, func() bool { return hub.Peers("est-1") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventsHandler_RequiresActor(t *testing.T) {
	srv, _ := eventsServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/documents/est-1/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

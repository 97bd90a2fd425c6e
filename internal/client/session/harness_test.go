package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/client/clock"
	"github.com/iudanet/estisync/internal/models"
)

var (
	price = models.NewPath(models.KindPricing, "p1", "price")
	title = models.NewPath(models.KindEstimate, "e1", "title")
	notes = models.NewPath(models.KindLineItem, "l1", "notes")
	qty   = models.NewPath(models.KindLineItem, "l1", "qty")
)

const (
	testDebounce    = 2 * time.Second
	testSaveTimeout = 10 * time.Second
	testPresenceTTL = 30 * time.Second
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memServer минимальный бэкенд с проверкой ревизии
type memServer struct {
	doc   *models.Document
	saves []models.SaveRequest
	mu    sync.Mutex
}

func newMemServer(doc *models.Document) *memServer {
	return &memServer{doc: doc.Clone()}
}

func (m *memServer) load(_ context.Context, documentID string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doc.Revision == 0 && len(m.doc.Paths()) == 0 {
		return nil, models.ErrDocumentNotFound
	}
	return m.doc.Clone(), nil
}

func (m *memServer) save(_ context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves = append(m.saves, req)
	if req.ExpectedRevision != m.doc.Revision {
		return &models.SaveResult{
			Status:         models.SaveConflict,
			Revision:       m.doc.Revision,
			ServerSnapshot: m.doc.Clone(),
		}, nil
	}
	m.doc.ApplyChanges(req.Changes)
	m.doc.Revision++
	return &models.SaveResult{Status: models.SaveAccepted, Revision: m.doc.Revision}, nil
}

// edit изменение другого участника прямо на сервере
func (m *memServer) edit(fn func(d *models.Document)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(m.doc)
	m.doc.Revision++
}

func (m *memServer) snapshot() *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

func (m *memServer) requests() []models.SaveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SaveRequest, len(m.saves))
	copy(out, m.saves)
	return out
}

type harness struct {
	s         *Session
	clk       *clock.Fake
	srv       *memServer
	backend   *BackendMock
	transport *TransportMock
	inbound   chan []byte
	barriers  int
}

func baseConfig() Config {
	return Config{
		DocumentID:  "est-1",
		ActorID:     "alice",
		DisplayName: "Alice",
		Color:       "#0af",
		Debounce:    testDebounce,
		SaveTimeout: testSaveTimeout,
		PresenceTTL: testPresenceTTL,
	}
}

func seedDocument() *models.Document {
	doc := models.NewDocument("est-1")
	doc.Revision = 3
	doc.Put(price, val(`100`, 1, "seed"))
	doc.Put(title, val(`"Roof"`, 1, "seed"))
	return doc
}

func val(raw string, ts int64, node string) *models.Value {
	return &models.Value{Data: json.RawMessage(raw), Timestamp: ts, NodeID: node}
}

// newHarness создает сессию поверх memServer, транспорта-мока и фальшивых часов.
// configure может подменить функции моков до старта сессии.
func newHarness(t *testing.T, cfg Config, doc *models.Document, configure func(h *harness), opts ...Option) *harness {
	t.Helper()

	h := &harness{
		clk:     clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)),
		srv:     newMemServer(doc),
		inbound: make(chan []byte, 16),
	}
	h.backend = &BackendMock{
		LoadFunc: h.srv.load,
		SaveFunc: h.srv.save,
	}
	h.transport = &TransportMock{
		SendFunc:    func(ctx context.Context, ev models.Event) error { return nil },
		InboundFunc: func() <-chan []byte { return h.inbound },
		CloseFunc:   func() error { return nil },
	}
	if configure != nil {
		configure(h)
	}

	opts = append([]Option{WithClock(h.clk)}, opts...)
	s, err := New(context.Background(), cfg, h.backend, h.transport, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	h.s = s
	return h
}

func (h *harness) mutate(t *testing.T, p models.Path, raw string) string {
	t.Helper()
	id, err := h.s.Mutate(context.Background(), p, json.RawMessage(raw))
	require.NoError(t, err)
	return id
}

// flush дожидается выполнения всех шагов, уже стоящих в очереди цикла
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.s.call(context.Background(), func() {}))
}

func (h *harness) push(t *testing.T, ev models.Event) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	h.inbound <- data
}

func (h *harness) state() string {
	return string(h.s.Status().State)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond, msg)
}

func lookup(doc *models.Document, p models.Path) string {
	v, ok := doc.Lookup(p)
	if !ok {
		return "<absent>"
	}
	return string(v.Data)
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

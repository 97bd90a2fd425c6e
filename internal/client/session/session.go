// Package session is the client-side synchronization engine for one
// document: optimistic local mutations, debounced auto-save with conflict
// detection and resolution, inbound collaborator events and presence.
//
// All state transitions run as atomic steps on a single event-loop goroutine
// owned by the Session. Backend round trips run off the loop and post their
// results back as steps; stale results are recognised by their request token.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/iudanet/estisync/internal/client/autosave"
	"github.com/iudanet/estisync/internal/client/clock"
	"github.com/iudanet/estisync/internal/client/dispatch"
	"github.com/iudanet/estisync/internal/client/events"
	"github.com/iudanet/estisync/internal/client/ledger"
	"github.com/iudanet/estisync/internal/client/presence"
	"github.com/iudanet/estisync/internal/client/storage"
	"github.com/iudanet/estisync/internal/client/store"
	"github.com/iudanet/estisync/internal/conflict"
	"github.com/iudanet/estisync/internal/crdt"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/validation"
)

// Значения конфигурации по умолчанию
const (
	DefaultDebounce           = 2 * time.Second
	DefaultSaveTimeout        = 10 * time.Second
	DefaultMaxConflictRetries = 1

	stepQueueSize   = 64
	noticeQueueSize = 256
	outboxSize      = 256
)

//go:generate moq -out backend_mock.go . Backend

// Backend хранилище документов на сервере
type Backend interface {
	// Load возвращает текущий документ; models.ErrDocumentNotFound, если его еще нет
	Load(ctx context.Context, documentID string) (*models.Document, error)

	// Save записывает изменения относительно ожидаемой ревизии.
	// Конфликт ревизий - это результат со статусом conflict, а не ошибка.
	Save(ctx context.Context, documentID string, req models.SaveRequest) (*models.SaveResult, error)
}

//go:generate moq -out transport_mock.go . Transport

// Transport двунаправленный канал событий
type Transport interface {
	Send(ctx context.Context, ev models.Event) error
	Inbound() <-chan []byte
	Close() error
}

//go:generate moq -out cache_mock.go . Cache

// Cache локальный кэш клиента: черновики и журнал аудита
type Cache interface {
	storage.DraftStorage
	storage.AuditStorage
}

// Config параметры сессии
type Config struct {
	DocumentID      string
	ActorID         string
	DisplayName     string
	Color           string
	DefaultStrategy models.Strategy // пустая строка: конфликты разрешает пользователь

	Debounce           time.Duration
	SaveTimeout        time.Duration
	PresenceTTL        time.Duration
	MaxSaveFailures    int
	MaxConflictRetries int
}

func (c *Config) setDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = presence.DefaultTTL
	}
	if c.MaxSaveFailures <= 0 {
		c.MaxSaveFailures = autosave.DefaultMaxFailures
	}
	if c.MaxConflictRetries <= 0 {
		c.MaxConflictRetries = DefaultMaxConflictRetries
	}
}

func (c *Config) validate() error {
	if c.DocumentID == "" {
		return errors.New("document id is required")
	}
	if c.ActorID == "" {
		return errors.New("actor id is required")
	}
	if c.DefaultStrategy != "" {
		if _, err := models.ParseStrategy(string(c.DefaultStrategy)); err != nil {
			return err
		}
	}
	return nil
}

// Status индикаторы для пользователя: несохраненные изменения, запись, конфликт
type Status struct {
	autosave.Status
	Revision       int64 `json:"revision"`
	PendingUpdates int   `json:"pending_updates"`
}

// Session движок синхронизации одного документа
type Session struct {
	backend   Backend
	transport Transport
	cache     Cache
	clock     clock.Clock
	validator validation.Validator
	tracer    trace.Tracer
	merge     conflict.MergeFunc
	logger    *slog.Logger

	lamport    *crdt.LamportClock
	store      *store.Store
	ledger     *ledger.Ledger
	sched      *autosave.Scheduler
	resolver   *conflict.Resolver
	tracker    *presence.Tracker
	dispatcher *dispatch.Dispatcher
	outbox     *outbox

	conflicts events.Feed[*models.Conflict]
	statuses  events.Feed[Status]

	ctx     context.Context
	cancel  context.CancelFunc
	steps   chan func()
	notices chan func()
	done    chan struct{}

	// состояние цикла событий: только внутри шагов
	debounce     clock.Timer
	pruneTimer   clock.Timer
	inflight     *inflightSave
	conflict     *models.Conflict
	waiters      []chan error
	debounceGen  uint64
	autoResolved int
	hasDraft     bool
	writing      bool // идет неоптимистичная запись, автосохранение ждет

	// снимки для чтения вне цикла
	status          Status
	pendingConflict *models.Conflict
	audit           []models.AuditNote
	mu              sync.RWMutex

	cfg       Config
	wg        sync.WaitGroup
	writeMu   sync.Mutex // неоптимистичные записи идут по одной
	closeOnce sync.Once
}

// New загружает документ, восстанавливает черновик из кэша и запускает цикл событий.
// transport может быть nil: тогда сессия работает без совместного редактирования.
func New(ctx context.Context, cfg Config, backend Backend, transport Transport, logger *slog.Logger, opts ...Option) (*Session, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	s := &Session{
		backend:   backend,
		transport: transport,
		clock:     clock.Real(),
		validator: validation.Nop,
		tracer:    noop.NewTracerProvider().Tracer(""),
		logger:    logger.With("document_id", cfg.DocumentID),
		cfg:       cfg,
		steps:     make(chan func(), stepQueueSize),
		notices:   make(chan func(), noticeQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := s.backend.Load(ctx, cfg.DocumentID)
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		s.logger.Info("Document does not exist yet, starting empty")
		doc = models.NewDocument(cfg.DocumentID)
	case err != nil:
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	s.lamport = crdt.NewLamportClock(cfg.ActorID)
	s.lamport.ObserveDocument(doc)
	s.store = store.New(doc, s.logger)
	s.ledger = ledger.New(s.store, s.logger, ledger.WithNow(s.clock.Now))
	s.sched = autosave.New(cfg.MaxSaveFailures)
	s.resolver = conflict.NewResolver(cfg.ActorID, s.merge, s.clock.Now, s.logger)
	s.tracker = presence.NewTracker(cfg.PresenceTTL, s.clock.Now, s.logger)

	var sender dispatch.Sender
	if transport != nil {
		s.outbox = newOutbox(s.done)
		sender = s.outbox
	}
	s.dispatcher = dispatch.New(cfg.DocumentID, cfg.ActorID, sender, s.clock.Now, s.logger)
	s.routes()

	if err := s.restore(ctx, doc); err != nil {
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(2)
	go s.run()
	go s.notifyLoop()
	if transport != nil {
		s.wg.Add(2)
		go s.readLoop()
		go s.writeLoop()
	}

	// цикл уже запущен: начальная настройка тоже выполняется шагом
	if err := s.call(ctx, s.start); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Info("Session started",
		"actor_id", cfg.ActorID,
		"revision", s.store.Revision(),
		"dirty", s.store.IsDirty())
	return s, nil
}

// restore поднимает черновик и журнал аудита из кэша
func (s *Session) restore(ctx context.Context, loaded *models.Document) error {
	if s.cache == nil {
		return nil
	}

	notes, err := s.cache.ListAudit(ctx, s.cfg.DocumentID)
	if err != nil {
		s.logger.Warn("Failed to load audit log from cache", "error", err)
	}
	s.audit = notes

	draft, err := s.cache.GetDraft(ctx, s.cfg.DocumentID)
	switch {
	case errors.Is(err, storage.ErrDraftNotFound):
		return nil
	case err != nil:
		s.logger.Warn("Failed to load draft from cache", "error", err)
		return nil
	}
	if draft.Base == nil || draft.Local == nil {
		return nil
	}
	if draft.Base.Revision > loaded.Revision {
		s.logger.Warn("Discarding draft based on a revision the server does not have",
			"draft_revision", draft.Base.Revision,
			"server_revision", loaded.Revision)
		return nil
	}

	// Черновик на старой ревизии восстанавливается как есть: запись получит
	// конфликт ревизий, и трехстороннее сравнение с базой черновика решит,
	// нужна ли перебазировка или разрешение конфликта.
	s.store.Install(draft.Base, draft.Local)
	s.lamport.ObserveDocument(draft.Local)
	s.hasDraft = true
	if s.store.IsDirty() {
		s.sched.MarkDirty(s.clock.Now())
		s.logger.Info("Unsaved draft restored",
			"draft_revision", draft.Base.Revision,
			"changes", len(s.store.DirtyChanges()))
	}
	return nil
}

func (s *Session) start() {
	if s.sched.State() == autosave.StateDirty {
		s.armDebounce()
	}
	s.armPrune()
	s.changed()
}

// Close останавливает цикл событий и закрывает транспорт. Повторный вызов ничего не делает.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.transport != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = s.dispatcher.Emit(ctx, models.EventPresenceLeave, models.Identity{})
			s.outbox.flush(ctx, s.transport, s.logger)
			cancel()
		}

		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		if s.debounce != nil {
			s.debounce.Stop()
		}
		if s.pruneTimer != nil {
			s.pruneTimer.Stop()
		}
		if s.transport != nil {
			err = s.transport.Close()
		}
		s.logger.Info("Session closed")
	})
	return err
}

// run цикл событий: единственная горутина, которая меняет состояние сессии
func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case step := <-s.steps:
			step()
		case <-s.done:
			return
		}
	}
}

// call выполняет fn шагом цикла и ждет завершения
func (s *Session) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	step := func() {
		defer close(ran)
		fn()
	}

	select {
	case s.steps <- step:
	case <-s.done:
		return models.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-s.done:
		select {
		case <-ran:
			return nil
		default:
			return models.ErrSessionClosed
		}
	}
}

// post ставит шаг в очередь без ожидания. Используется таймерами и горутинами записи.
func (s *Session) post(fn func()) {
	select {
	case s.steps <- fn:
	case <-s.done:
	}
}

// notify передает уведомление наблюдателям. Наблюдатели работают в отдельной
// горутине и могут вызывать методы сессии.
func (s *Session) notify(fn func()) {
	select {
	case s.notices <- fn:
	case <-s.done:
	}
}

func (s *Session) notifyLoop() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.notices:
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	in := s.transport.Inbound()
	for {
		select {
		case raw, ok := <-in:
			if !ok {
				s.logger.Info("Transport inbound stream closed")
				return
			}
			s.post(func() {
				// ошибки уже залогированы диспетчером
				_ = s.dispatcher.OnInbound(s.ctx, raw)
			})
		case <-s.done:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	s.outbox.drain(s.ctx, s.transport, s.logger)
}

// changed сохраняет черновик и публикует статус после перехода
func (s *Session) changed() {
	s.persistDraft()
	s.refreshStatus()
}

func (s *Session) refreshStatus() {
	st := Status{
		Status:         s.sched.Status(),
		Revision:       s.store.Revision(),
		PendingUpdates: s.ledger.Len(),
	}

	s.mu.Lock()
	updated := st != s.status
	s.status = st
	s.pendingConflict = s.conflict
	s.mu.Unlock()

	if updated {
		s.notify(func() { s.statuses.Publish(st) })
	}
}

func (s *Session) persistDraft() {
	if s.cache == nil {
		return
	}

	if !s.store.IsDirty() {
		if !s.hasDraft {
			return
		}
		if err := s.cache.DeleteDraft(s.ctx, s.cfg.DocumentID); err != nil {
			s.logger.Warn("Failed to delete draft", "error", err)
			return
		}
		s.hasDraft = false
		return
	}

	draft := &storage.Draft{
		DocumentID: s.cfg.DocumentID,
		Base:       s.store.Base(),
		Local:      s.store.Snapshot(),
		SavedAt:    s.clock.Now(),
	}
	if err := s.cache.SaveDraft(s.ctx, draft); err != nil {
		s.logger.Warn("Failed to save draft", "error", err)
		return
	}
	s.hasDraft = true
}

// Document возвращает копию текущего локального состояния
func (s *Session) Document() *models.Document {
	return s.store.Snapshot()
}

// Status возвращает последний опубликованный статус
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// OnStatus подписывает наблюдателя на изменения статуса
func (s *Session) OnStatus(fn func(Status)) (dispose func()) {
	return s.statuses.Subscribe(fn)
}

// AuditLog возвращает заметки о разрешенных конфликтах в порядке появления
func (s *Session) AuditLog() []models.AuditNote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AuditNote, len(s.audit))
	copy(out, s.audit)
	return out
}

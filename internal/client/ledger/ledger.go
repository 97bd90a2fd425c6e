// Package ledger tracks optimistic updates: local mutations applied to the
// store before the server has confirmed them.
package ledger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/estisync/internal/client/store"
	"github.com/iudanet/estisync/internal/models"
)

// DefaultConfirmedLimit сколько подтвержденных ID помнить для ответа на повторный откат.
// 0 - помнить все, пока живет журнал.
const DefaultConfirmedLimit = 0

// Ledger журнал оптимистичных обновлений.
// Не потокобезопасен: все вызовы выполняются из цикла событий сессии.
type Ledger struct {
	store     *store.Store
	logger    *slog.Logger
	now       func() time.Time
	index     map[string]*models.OptimisticUpdate
	confirmed map[string]struct{}
	pending   []*models.OptimisticUpdate // в порядке создания
	order     []string                   // порядок подтверждения для вытеснения (только при limit > 0)
	limit     int
}

// Option настраивает журнал
type Option func(*Ledger)

// WithNow задает источник времени
func WithNow(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithConfirmedLimit задает размер памяти о подтвержденных обновлениях
func WithConfirmedLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.limit = n
		}
	}
}

// New создает журнал поверх хранилища документа
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:     st,
		logger:    logger,
		now:       time.Now,
		index:     make(map[string]*models.OptimisticUpdate),
		confirmed: make(map[string]struct{}),
		limit:     DefaultConfirmedLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Begin фиксирует значения затрагиваемых путей, затем применяет мутацию через хранилище.
// Возвращает копию созданного обновления в статусе pending.
func (l *Ledger) Begin(m models.Mutation) *models.OptimisticUpdate {
	before := l.store.Snapshot()

	snapshot := make(map[models.Path]*models.Value)
	for _, p := range m.Paths(before) {
		v, _ := before.Lookup(p)
		snapshot[p] = v
	}

	u := &models.OptimisticUpdate{
		ID:        uuid.New().String(),
		Mutation:  m,
		Snapshot:  snapshot,
		Status:    models.UpdatePending,
		CreatedAt: l.now(),
	}
	l.store.Apply(m)

	l.pending = append(l.pending, u)
	l.index[u.ID] = u

	l.logger.Debug("Optimistic update started", "update_id", u.ID, "op", m.Op, "path", m.Path.String())
	return u.Clone()
}

// Confirm помечает обновление подтвержденным и удаляет его из журнала.
// Повторный вызов и неизвестный ID ничего не делают. Возвращает true, если статус изменился.
func (l *Ledger) Confirm(id string) bool {
	u, ok := l.index[id]
	if !ok {
		return false
	}
	u.Status = models.UpdateConfirmed
	l.remove(id)
	l.remember(id)

	l.logger.Debug("Optimistic update confirmed", "update_id", id)
	return true
}

// ConfirmMany подтверждает набор обновлений, вошедших в принятую запись
func (l *Ledger) ConfirmMany(ids []string) int {
	n := 0
	for _, id := range ids {
		if l.Confirm(id) {
			n++
		}
	}
	return n
}

// Rollback восстанавливает состояние до обновления id и удаляет его.
//
// Если более позднее ожидающее обновление затрагивает тот же путь (или удаляет всю
// сущность пути), значение пути не меняется, а снимок отката передается этому
// обновлению. Результат совпадает с восстановлением снимка и повторным применением
// последующих обновлений.
func (l *Ledger) Rollback(id string) error {
	u, ok := l.index[id]
	if !ok {
		if _, done := l.confirmed[id]; done {
			return models.ErrRollbackOfConfirmed
		}
		return models.ErrUpdateNotFound
	}

	pos := l.position(id)
	for p, prior := range u.Snapshot {
		if later := l.nextTouching(pos, p); later != nil {
			later.Snapshot[p] = models.ClonePtr(prior)
			continue
		}
		l.store.Restore(p, prior)
	}

	u.Status = models.UpdateRolledBack
	l.remove(id)

	l.logger.Debug("Optimistic update rolled back", "update_id", id, "paths", len(u.Snapshot))
	return nil
}

// Consume удаляет из журнала ожидающие обновления, затрагивающие любой из путей,
// не трогая хранилище. Используется, когда резолвер устанавливает итоговое значение.
func (l *Ledger) Consume(paths []models.Path) []string {
	set := models.NewPathSet(paths...)

	var ids []string
	for _, u := range l.pending {
		for p := range u.Snapshot {
			if set.Has(p) {
				ids = append(ids, u.ID)
				break
			}
		}
	}
	for _, id := range ids {
		l.index[id].Status = models.UpdateRolledBack
		l.remove(id)
	}
	if len(ids) > 0 {
		l.logger.Debug("Optimistic updates consumed by resolution", "count", len(ids))
	}
	return ids
}

// Drop забывает ожидающие обновления, не трогая хранилище и не считая их
// подтвержденными. Используется, когда локальное состояние само совпало с базой.
func (l *Ledger) Drop(ids []string) int {
	n := 0
	for _, id := range ids {
		u, ok := l.index[id]
		if !ok {
			continue
		}
		u.Status = models.UpdateRolledBack
		l.remove(id)
		n++
	}
	if n > 0 {
		l.logger.Debug("Optimistic updates dropped", "count", n)
	}
	return n
}

// Get возвращает копию ожидающего обновления
func (l *Ledger) Get(id string) (*models.OptimisticUpdate, bool) {
	u, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// Pending возвращает копии ожидающих обновлений в порядке создания
func (l *Ledger) Pending() []*models.OptimisticUpdate {
	out := make([]*models.OptimisticUpdate, 0, len(l.pending))
	for _, u := range l.pending {
		out = append(out, u.Clone())
	}
	return out
}

// PendingIDs возвращает ID ожидающих обновлений
func (l *Ledger) PendingIDs() []string {
	ids := make([]string, 0, len(l.pending))
	for _, u := range l.pending {
		ids = append(ids, u.ID)
	}
	return ids
}

// Touching возвращает ID ожидающих обновлений, затрагивающих путь
func (l *Ledger) Touching(p models.Path) []string {
	var ids []string
	for _, u := range l.pending {
		if u.Touches(p) {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// Len количество ожидающих обновлений
func (l *Ledger) Len() int {
	return len(l.pending)
}

// IsConfirmed сообщает, было ли обновление подтверждено
func (l *Ledger) IsConfirmed(id string) bool {
	_, ok := l.confirmed[id]
	return ok
}

func (l *Ledger) position(id string) int {
	for i, u := range l.pending {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// nextTouching ищет первое более позднее обновление, которое после повторного
// применения определило бы значение пути p
func (l *Ledger) nextTouching(pos int, p models.Path) *models.OptimisticUpdate {
	for _, u := range l.pending[pos+1:] {
		if u.Touches(p) || u.Covers(p) {
			return u
		}
	}
	return nil
}

func (l *Ledger) remove(id string) {
	delete(l.index, id)
	for i, u := range l.pending {
		if u.ID == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

func (l *Ledger) remember(id string) {
	l.confirmed[id] = struct{}{}
	if l.limit <= 0 {
		return
	}
	l.order = append(l.order, id)
	for len(l.order) > l.limit {
		delete(l.confirmed, l.order[0])
		l.order = l.order[1:]
	}
}

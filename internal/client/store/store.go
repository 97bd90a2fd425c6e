// Package store holds the client-side document state. Every transition
// publishes a new immutable snapshot; callers only ever see copies.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/estisync/internal/models"
)

// Apply применяет мутацию к копии документа и возвращает новое состояние.
// Функция чистая: исходный документ не изменяется. Apply никогда не завершается ошибкой,
// мутации проверяются до вызова.
func Apply(doc *models.Document, m models.Mutation) *models.Document {
	next := doc.Clone()
	switch m.Op {
	case models.OpSet:
		if m.Value != nil {
			next.SetField(m.Path, *m.Value)
		}
	case models.OpUnset:
		next.UnsetField(m.Path)
	case models.OpDeleteEntity:
		next.DeleteEntity(m.Target())
	}
	return next
}

// Store единственный владелец состояния документа на клиенте.
//
// current - состояние с учетом локальных изменений, base - последнее состояние,
// совпадающее с сервером на ревизии base.Revision. Грязные пути = Diff(base, current).
type Store struct {
	logger  *slog.Logger
	current *models.Document
	base    *models.Document
	mu      sync.RWMutex
}

// New создает хранилище из загруженного с сервера документа
func New(doc *models.Document, logger *slog.Logger) *Store {
	return &Store{
		current: doc.Clone(),
		base:    doc.Clone(),
		logger:  logger,
	}
}

// Apply применяет мутацию и публикует новый снимок
func (s *Store) Apply(m models.Mutation) *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Apply(s.current, m)
	s.logger.Debug("Mutation applied", "op", m.Op, "path", m.Path.String())
	return s.current.Clone()
}

// Preview возвращает состояние, которое получится после мутации, не меняя хранилище
func (s *Store) Preview(m models.Mutation) *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Apply(s.current, m)
}

// Get возвращает сущность; false если она отсутствует
func (s *Store) Get(kind models.EntityKind, id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Entity(kind, id)
}

// Lookup возвращает текущее значение поля
func (s *Store) Lookup(p models.Path) (*models.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Lookup(p)
}

// Replace заменяет сущность целиком; пустая сущность удаляет ее
func (s *Store) Replace(kind models.EntityKind, id string, e models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	next.PutEntity(models.EntityRef{Kind: kind, ID: id}, e)
	s.current = next
}

// Restore устанавливает значение пути (nil - удалить поле).
// Используется журналом обновлений при откате.
func (s *Store) Restore(p models.Path, v *models.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	next.Put(p, v)
	s.current = next
}

// Snapshot возвращает копию текущего состояния
func (s *Store) Snapshot() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Clone()
}

// Base возвращает копию базового снимка
func (s *Store) Base() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.base.Clone()
}

// Revision возвращает ревизию базового снимка
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.base.Revision
}

// Install атомарно заменяет базовый снимок и текущее состояние.
// current получает ревизию base.
func (s *Store) Install(base, current *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.base = base.Clone()
	next := current.Clone()
	next.Revision = base.Revision
	next.SyncedAt = base.SyncedAt
	s.current = next
}

// Commit продвигает базовый снимок после принятой записи:
// к базе применяются отправленные изменения и присваивается новая ревизия.
func (s *Store) Commit(changes []models.FieldChange, revision int64, syncedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.base.Clone()
	base.ApplyChanges(changes)
	base.Revision = revision
	base.SyncedAt = syncedAt
	s.base = base

	current := s.current.Clone()
	current.Revision = revision
	current.SyncedAt = base.SyncedAt
	s.current = current
}

// ApplyRemote применяет авторитетные изменения другого участника к путям,
// которые не изменены локально. Возвращает пути, которые пришлось пропустить.
// Если advance true, базовый снимок получает ревизию revision.
func (s *Store) ApplyRemote(changes []models.FieldChange, revision int64, advance bool) []models.Path {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := models.NewPathSet(models.ChangedPaths(models.Diff(s.base, s.current))...)

	base := s.base.Clone()
	current := s.current.Clone()
	var contested []models.Path
	for _, ch := range changes {
		if dirty.Has(ch.Path) {
			contested = append(contested, ch.Path)
			continue
		}
		base.Put(ch.Path, ch.Value)
		current.Put(ch.Path, ch.Value)
	}
	if advance && len(contested) == 0 {
		base.Revision = revision
		current.Revision = revision
	}
	s.base = base
	s.current = current

	return contested
}

// DirtyChanges возвращает изменения, которые нужно сохранить
func (s *Store) DirtyChanges() []models.FieldChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.Diff(s.base, s.current)
}

// IsDirty сообщает, есть ли несохраненные изменения
func (s *Store) IsDirty() bool {
	return len(s.DirtyChanges()) > 0
}

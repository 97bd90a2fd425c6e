package crdt

import (
	"github.com/iudanet/estisync/internal/models"
)

// Stamp версия записи в LWW-регистре
type Stamp struct {
	NodeID string
	Time   int64
}

// After сообщает, новее ли s, чем other.
// При равном времени сравнивается NodeID (лексикографически) для детерминизма.
func (s Stamp) After(other Stamp) bool {
	if s.Time != other.Time {
		return s.Time > other.Time
	}
	return s.NodeID > other.NodeID
}

// Register is a last-write-wins register. The zero value is empty.
// Register is not safe for concurrent use; callers guard it.
type Register[T any] struct {
	value T
	stamp Stamp
	set   bool
}

// Set записывает значение, если stamp новее текущего.
// Возвращает true, если значение было принято.
func (r *Register[T]) Set(v T, stamp Stamp) bool {
	if r.set && !stamp.After(r.stamp) {
		return false
	}
	r.value = v
	r.stamp = stamp
	r.set = true
	return true
}

// Get возвращает значение и его версию
func (r *Register[T]) Get() (T, Stamp, bool) {
	return r.value, r.stamp, r.set
}

// Merge объединяет регистр с другим по правилу LWW.
// Операция коммутативна и идемпотентна.
func (r *Register[T]) Merge(other *Register[T]) bool {
	if !other.set {
		return false
	}
	return r.Set(other.value, other.stamp)
}

// LatestWins функция слияния по умолчанию для конфликтующего поля:
// побеждает значение с большей меткой Лампорта (при равенстве - больший NodeID).
// Отсутствующее значение не имеет метки и проигрывает любому существующему.
func LatestWins(fc models.FieldConflict) *models.Value {
	switch {
	case fc.Local == nil:
		return models.ClonePtr(fc.Server)
	case fc.Server == nil:
		return models.ClonePtr(fc.Local)
	case fc.Local.IsNewerThan(*fc.Server):
		return models.ClonePtr(fc.Local)
	default:
		return models.ClonePtr(fc.Server)
	}
}

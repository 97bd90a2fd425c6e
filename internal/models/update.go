package models

import (
	"fmt"
	"time"
)

// MutationOp вид локальной мутации
type MutationOp string

const (
	OpSet          MutationOp = "set"
	OpUnset        MutationOp = "unset"
	OpDeleteEntity MutationOp = "delete"
)

// Mutation локальное изменение документа.
// Для OpDeleteEntity поле Path.Field игнорируется.
type Mutation struct {
	Value *Value     `json:"value,omitempty"`
	Op    MutationOp `json:"op"`
	Path  Path       `json:"path"`
}

// SetMutation создает мутацию записи значения
func SetMutation(p Path, v Value) Mutation {
	return Mutation{Op: OpSet, Path: p, Value: &v}
}

// UnsetMutation создает мутацию удаления поля
func UnsetMutation(p Path) Mutation {
	return Mutation{Op: OpUnset, Path: p}
}

// DeleteEntityMutation создает мутацию удаления сущности
func DeleteEntityMutation(ref EntityRef) Mutation {
	return Mutation{Op: OpDeleteEntity, Path: Path{Kind: ref.Kind, EntityID: ref.ID, Field: "*"}}
}

// Validate проверяет корректность мутации
func (m Mutation) Validate() error {
	switch m.Op {
	case OpSet:
		if m.Value == nil {
			return fmt.Errorf("%w: set without value", ErrInvalidValue)
		}
		return m.Path.Validate()
	case OpUnset:
		return m.Path.Validate()
	case OpDeleteEntity:
		return Path{Kind: m.Path.Kind, EntityID: m.Path.EntityID, Field: "*"}.Validate()
	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
}

// Target возвращает сущность, которую затрагивает мутация
func (m Mutation) Target() EntityRef {
	return m.Path.Entity()
}

// Paths возвращает пути, которые мутация изменит в документе doc
func (m Mutation) Paths(doc *Document) []Path {
	if m.Op == OpDeleteEntity {
		return doc.EntityPaths(m.Target())
	}
	return []Path{m.Path}
}

// UpdateStatus статус оптимистичного обновления
type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "pending"
	UpdateConfirmed  UpdateStatus = "confirmed"
	UpdateRolledBack UpdateStatus = "rolled_back"
)

// OptimisticUpdate is a local mutation applied ahead of server confirmation.
// Snapshot holds, for every affected path, the value before the mutation
// (nil when the field was absent).
type OptimisticUpdate struct {
	CreatedAt time.Time       `json:"created_at"`
	Snapshot  map[Path]*Value `json:"snapshot"`
	ID        string          `json:"id"`
	Status    UpdateStatus    `json:"status"`
	Mutation  Mutation        `json:"mutation"`
}

// Touches сообщает, затрагивает ли обновление путь p
func (u *OptimisticUpdate) Touches(p Path) bool {
	_, ok := u.Snapshot[p]
	return ok
}

// Covers сообщает, что мутация обновления задает значение пути p, даже если
// поля p не было в момент применения (удаление всей сущности)
func (u *OptimisticUpdate) Covers(p Path) bool {
	return u.Mutation.Op == OpDeleteEntity && u.Mutation.Target() == p.Entity()
}

// Clone создает глубокую копию обновления
func (u *OptimisticUpdate) Clone() *OptimisticUpdate {
	snap := make(map[Path]*Value, len(u.Snapshot))
	for p, v := range u.Snapshot {
		snap[p] = ClonePtr(v)
	}
	m := u.Mutation
	m.Value = ClonePtr(u.Mutation.Value)
	return &OptimisticUpdate{
		ID:        u.ID,
		Mutation:  m,
		Snapshot:  snap,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

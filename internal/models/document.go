package models

import (
	"sort"
	"time"
)

// Entity набор полей одной сущности. Сущность без полей считается отсутствующей.
type Entity struct {
	Fields map[string]Value `json:"fields"`
}

// Clone создает глубокую копию сущности
func (e Entity) Clone() Entity {
	fields := make(map[string]Value, len(e.Fields))
	for name, v := range e.Fields {
		fields[name] = v.Clone()
	}
	return Entity{Fields: fields}
}

// Document is the synchronized estimate: every entity the engine tracks,
// plus the backend-assigned revision it was last reconciled at.
type Document struct {
	SyncedAt time.Time                        `json:"synced_at"`
	Entities map[EntityKind]map[string]Entity `json:"entities"`
	ID       string                           `json:"id"`
	Revision int64                            `json:"revision"`
}

// NewDocument создает пустой документ
func NewDocument(id string) *Document {
	return &Document{
		ID:       id,
		Entities: make(map[EntityKind]map[string]Entity),
	}
}

// Clone создает глубокую копию документа
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		ID:       d.ID,
		Revision: d.Revision,
		SyncedAt: d.SyncedAt,
		Entities: make(map[EntityKind]map[string]Entity, len(d.Entities)),
	}
	for kind, byID := range d.Entities {
		m := make(map[string]Entity, len(byID))
		for id, e := range byID {
			m[id] = e.Clone()
		}
		c.Entities[kind] = m
	}
	return c
}

// Entity возвращает копию сущности; false если сущность отсутствует
func (d *Document) Entity(kind EntityKind, id string) (Entity, bool) {
	e, ok := d.Entities[kind][id]
	if !ok || len(e.Fields) == 0 {
		return Entity{}, false
	}
	return e.Clone(), true
}

// Lookup возвращает значение поля по пути
func (d *Document) Lookup(p Path) (*Value, bool) {
	e, ok := d.Entities[p.Kind][p.EntityID]
	if !ok {
		return nil, false
	}
	v, ok := e.Fields[p.Field]
	if !ok {
		return nil, false
	}
	c := v.Clone()
	return &c, true
}

// SetField записывает значение поля (изменяет документ на месте)
func (d *Document) SetField(p Path, v Value) {
	if d.Entities == nil {
		d.Entities = make(map[EntityKind]map[string]Entity)
	}
	byID, ok := d.Entities[p.Kind]
	if !ok {
		byID = make(map[string]Entity)
		d.Entities[p.Kind] = byID
	}
	e, ok := byID[p.EntityID]
	if !ok || e.Fields == nil {
		e = Entity{Fields: make(map[string]Value)}
	}
	e.Fields[p.Field] = v.Clone()
	byID[p.EntityID] = e
}

// UnsetField удаляет поле; пустая сущность удаляется целиком
func (d *Document) UnsetField(p Path) {
	byID, ok := d.Entities[p.Kind]
	if !ok {
		return
	}
	e, ok := byID[p.EntityID]
	if !ok {
		return
	}
	delete(e.Fields, p.Field)
	if len(e.Fields) == 0 {
		delete(byID, p.EntityID)
	}
	if len(byID) == 0 {
		delete(d.Entities, p.Kind)
	}
}

// Put записывает значение или удаляет поле, если v == nil
func (d *Document) Put(p Path, v *Value) {
	if v == nil {
		d.UnsetField(p)
		return
	}
	d.SetField(p, *v)
}

// PutEntity заменяет сущность целиком; пустая сущность означает удаление
func (d *Document) PutEntity(ref EntityRef, e Entity) {
	if len(e.Fields) == 0 {
		d.DeleteEntity(ref)
		return
	}
	if d.Entities == nil {
		d.Entities = make(map[EntityKind]map[string]Entity)
	}
	byID, ok := d.Entities[ref.Kind]
	if !ok {
		byID = make(map[string]Entity)
		d.Entities[ref.Kind] = byID
	}
	byID[ref.ID] = e.Clone()
}

// DeleteEntity удаляет сущность со всеми полями
func (d *Document) DeleteEntity(ref EntityRef) {
	byID, ok := d.Entities[ref.Kind]
	if !ok {
		return
	}
	delete(byID, ref.ID)
	if len(byID) == 0 {
		delete(d.Entities, ref.Kind)
	}
}

// EntityPaths возвращает пути всех полей сущности
func (d *Document) EntityPaths(ref EntityRef) []Path {
	e, ok := d.Entities[ref.Kind][ref.ID]
	if !ok {
		return nil
	}
	paths := make([]Path, 0, len(e.Fields))
	for name := range e.Fields {
		paths = append(paths, NewPath(ref.Kind, ref.ID, name))
	}
	SortPaths(paths)
	return paths
}

// Paths возвращает все пути документа в детерминированном порядке
func (d *Document) Paths() []Path {
	var paths []Path
	for kind, byID := range d.Entities {
		for id, e := range byID {
			for name := range e.Fields {
				paths = append(paths, NewPath(kind, id, name))
			}
		}
	}
	SortPaths(paths)
	return paths
}

// ApplyChanges применяет набор изменений полей к документу на месте
func (d *Document) ApplyChanges(changes []FieldChange) {
	for _, ch := range changes {
		d.Put(ch.Path, ch.Value)
	}
}

// FieldChange describes the new state of one path; a nil Value means the
// field is absent.
type FieldChange struct {
	Value *Value `json:"value"`
	Path  Path   `json:"path"`
}

// Diff возвращает изменения, превращающие from в to.
// Сравниваются только данные полей. nil документ трактуется как пустой.
func Diff(from, to *Document) []FieldChange {
	if from == nil {
		from = &Document{}
	}
	if to == nil {
		to = &Document{}
	}

	seen := make(PathSet)
	var changes []FieldChange
	for _, p := range to.Paths() {
		seen[p] = struct{}{}
		tv, _ := to.Lookup(p)
		fv, _ := from.Lookup(p)
		if !SameValue(fv, tv) {
			changes = append(changes, FieldChange{Path: p, Value: tv})
		}
	}
	for _, p := range from.Paths() {
		if seen.Has(p) {
			continue
		}
		changes = append(changes, FieldChange{Path: p})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path.String() < changes[j].Path.String()
	})
	return changes
}

// ChangedPaths возвращает пути из набора изменений
func ChangedPaths(changes []FieldChange) []Path {
	paths := make([]Path, 0, len(changes))
	for _, ch := range changes {
		paths = append(paths, ch.Path)
	}
	return paths
}

// SortPaths сортирует пути по строковому представлению
func SortPaths(paths []Path) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].String() < paths[j].String()
	})
}

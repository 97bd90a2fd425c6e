package models

import (
	"fmt"
	"strings"
)

// EntityKind тип сущности внутри сметы
type EntityKind string

// Поддерживаемые типы сущностей
const (
	KindEstimate EntityKind = "estimate"
	KindLineItem EntityKind = "line_item"
	KindPricing  EntityKind = "pricing"
)

// Valid сообщает, является ли тип сущности известным
func (k EntityKind) Valid() bool {
	switch k {
	case KindEstimate, KindLineItem, KindPricing:
		return true
	}
	return false
}

// EntityRef identifies a single entity inside a document.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// Path адресует одно поле сущности: kind/entityID/field.
// Это единица обнаружения конфликтов.
type Path struct {
	Kind     EntityKind
	EntityID string
	Field    string
}

// NewPath собирает путь из составляющих
func NewPath(kind EntityKind, entityID, field string) Path {
	return Path{Kind: kind, EntityID: entityID, Field: field}
}

// ParsePath разбирает строку вида "pricing/p1/price".
// Имя поля может содержать "/".
func ParsePath(s string) (Path, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	p := Path{Kind: EntityKind(parts[0]), EntityID: parts[1], Field: parts[2]}
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}

// Validate проверяет, что все части пути заполнены и тип известен
func (p Path) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown entity kind %q", ErrInvalidPath, p.Kind)
	}
	if p.EntityID == "" || strings.Contains(p.EntityID, "/") {
		return fmt.Errorf("%w: bad entity id %q", ErrInvalidPath, p.EntityID)
	}
	if p.Field == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidPath)
	}
	return nil
}

// Entity возвращает ссылку на сущность, которой принадлежит поле
func (p Path) Entity() EntityRef {
	return EntityRef{Kind: p.Kind, ID: p.EntityID}
}

func (p Path) String() string {
	return string(p.Kind) + "/" + p.EntityID + "/" + p.Field
}

// MarshalText кодирует путь строкой (в том числе как ключ JSON map)
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText разбирает путь из строки
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PathSet is a small helper for membership checks.
type PathSet map[Path]struct{}

// NewPathSet builds a set from paths.
func NewPathSet(paths ...Path) PathSet {
	set := make(PathSet, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set.
func (s PathSet) Has(p Path) bool {
	_, ok := s[p]
	return ok
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value значение одного поля документа.
// Помимо данных хранит Lamport timestamp и идентификатор узла,
// создавшего эту версию. Это нужно для стратегии "последняя запись выигрывает".
type Value struct {
	Data      json.RawMessage `json:"data"`      // Data JSON значение поля (в компактной форме)
	NodeID    string          `json:"node_id"`   // NodeID идентификатор участника, записавшего значение
	Timestamp int64           `json:"timestamp"` // Timestamp Lamport timestamp записи
}

// NewValue проверяет и компактирует JSON данные.
// Компактная форма делает сравнение значений побайтовым.
func NewValue(data []byte, timestamp int64, nodeID string) (Value, error) {
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, data)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return Value{Data: buf.Bytes(), Timestamp: timestamp, NodeID: nodeID}, nil
}

// IsNewerThan сравнивает две версии значения.
// Сначала сравнивается Timestamp (больший выигрывает),
// при равных Timestamp сравнивается NodeID (лексикографически).
func (v Value) IsNewerThan(other Value) bool {
	if v.Timestamp > other.Timestamp {
		return true
	}
	if v.Timestamp < other.Timestamp {
		return false
	}
	return v.NodeID > other.NodeID
}

// Equal сравнивает только данные; метаданные версии не учитываются
func (v Value) Equal(other Value) bool {
	return bytes.Equal(v.Data, other.Data)
}

// Clone создает глубокую копию значения
func (v Value) Clone() Value {
	data := make(json.RawMessage, len(v.Data))
	copy(data, v.Data)
	return Value{Data: data, Timestamp: v.Timestamp, NodeID: v.NodeID}
}

// ClonePtr копирует значение по указателю, nil остается nil (поле отсутствует)
func ClonePtr(v *Value) *Value {
	if v == nil {
		return nil
	}
	c := v.Clone()
	return &c
}

// SameValue сравнивает два возможно отсутствующих значения
func SameValue(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

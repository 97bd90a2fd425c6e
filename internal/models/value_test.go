package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_IsNewerThan(t *testing.T) {

	tests := []struct {
		other    Value
		self     Value
		name     string
		expected bool
	}{
		{
			name:     "self timestamp greater",
			self:     Value{Timestamp: 101, NodeID: "nodeA"},
			other:    Value{Timestamp: 100, NodeID: "nodeA"},
			expected: true,
		},
		{
			name:     "self timestamp smaller",
			self:     Value{Timestamp: 90, NodeID: "nodeA"},
			other:    Value{Timestamp: 100, NodeID: "nodeA"},
			expected: false,
		},
		{
			name:     "timestamps equal, self NodeID greater lex",
			self:     Value{Timestamp: 100, NodeID: "nodeB"},
			other:    Value{Timestamp: 100, NodeID: "nodeA"},
			expected: true,
		},
		{
			name:     "timestamps equal, self NodeID lower lex",
			self:     Value{Timestamp: 100, NodeID: "nodeA"},
			other:    Value{Timestamp: 100, NodeID: "nodeB"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.self.IsNewerThan(tt.other)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewValue(t *testing.T) {
	v, err := NewValue([]byte(`{ "amount" : 10,  "currency": "EUR" }`), 3, "node-1")
	require.NoError(t, err)
	assert.Equal(t, `{"amount":10,"currency":"EUR"}`, string(v.Data))
	assert.Equal(t, int64(3), v.Timestamp)

	_, err = NewValue([]byte(`{broken`), 1, "node-1")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestValue_EqualIgnoresStamp(t *testing.T) {
	a := Value{Data: json.RawMessage(`42`), Timestamp: 1, NodeID: "a"}
	b := Value{Data: json.RawMessage(`42`), Timestamp: 7, NodeID: "b"}
	c := Value{Data: json.RawMessage(`43`), Timestamp: 1, NodeID: "a"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, SameValue(nil, nil))
	assert.False(t, SameValue(&a, nil))
	assert.True(t, SameValue(&a, &b))
}

func TestValue_Clone(t *testing.T) {
	original := Value{Data: json.RawMessage(`"abc"`), Timestamp: 5, NodeID: "n"}
	clone := original.Clone()
	assert.Equal(t, original, clone)

	clone.Data[1] = 'x'
	assert.Equal(t, `"abc"`, string(original.Data), "clone must not share data")
}

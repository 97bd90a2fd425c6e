package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValue(t *testing.T, raw string, ts int64) Value {
	t.Helper()
	v, err := NewValue([]byte(raw), ts, "node-test")
	require.NoError(t, err)
	return v
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Path
		wantErr bool
	}{
		{
			name:  "simple",
			input: "pricing/p1/price",
			want:  Path{Kind: KindPricing, EntityID: "p1", Field: "price"},
		},
		{
			name:  "field with slash",
			input: "line_item/li-7/notes/internal",
			want:  Path{Kind: KindLineItem, EntityID: "li-7", Field: "notes/internal"},
		},
		{name: "unknown kind", input: "invoice/1/total", wantErr: true},
		{name: "missing field", input: "estimate/e1", wantErr: true},
		{name: "empty entity", input: "estimate//title", wantErr: true},
		{name: "empty field", input: "estimate/e1/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestPath_JSONMapKey(t *testing.T) {
	p := NewPath(KindPricing, "p1", "price")
	data, err := json.Marshal(map[Path]int{p: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pricing/p1/price":1}`, string(data))

	var decoded map[Path]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded[p])
}

func TestDocument_SetUnset(t *testing.T) {
	doc := NewDocument("doc-1")
	price := NewPath(KindPricing, "p1", "price")
	qty := NewPath(KindPricing, "p1", "qty")

	doc.SetField(price, mustValue(t, `100`, 1))
	doc.SetField(qty, mustValue(t, `2`, 2))

	v, ok := doc.Lookup(price)
	require.True(t, ok)
	assert.Equal(t, `100`, string(v.Data))

	doc.UnsetField(price)
	_, ok = doc.Lookup(price)
	assert.False(t, ok)

	_, ok = doc.Entity(KindPricing, "p1")
	assert.True(t, ok)

	doc.UnsetField(qty)
	_, ok = doc.Entity(KindPricing, "p1")
	assert.False(t, ok, "entity without fields is absent")
	assert.Empty(t, doc.Entities)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument("doc-1")
	p := NewPath(KindEstimate, "e1", "title")
	doc.SetField(p, mustValue(t, `"Roof"`, 1))
	doc.Revision = 4

	clone := doc.Clone()
	clone.SetField(p, mustValue(t, `"Porch"`, 2))

	v, _ := doc.Lookup(p)
	assert.Equal(t, `"Roof"`, string(v.Data))
	assert.Equal(t, int64(4), clone.Revision)
}

func TestDiff(t *testing.T) {
	price := NewPath(KindPricing, "p1", "price")
	title := NewPath(KindEstimate, "e1", "title")
	notes := NewPath(KindLineItem, "l1", "notes")

	from := NewDocument("d")
	from.SetField(price, mustValue(t, `100`, 1))
	from.SetField(title, mustValue(t, `"Roof"`, 1))

	to := from.Clone()
	to.SetField(price, mustValue(t, `120`, 2))
	to.UnsetField(title)
	to.SetField(notes, mustValue(t, `"n"`, 3))
	// same data, new stamp: not a change
	to.SetField(NewPath(KindEstimate, "e1", "title"), mustValue(t, `"Roof"`, 9))

	changes := Diff(from, to)
	require.Len(t, changes, 2)
	assert.Equal(t, notes, changes[0].Path)
	assert.Equal(t, price, changes[1].Path)

	to.UnsetField(title)
	changes = Diff(from, to)
	require.Len(t, changes, 3)
	assert.Equal(t, title, changes[0].Path)
	assert.Nil(t, changes[0].Value)

	applied := from.Clone()
	applied.ApplyChanges(changes)
	assert.Empty(t, Diff(applied, to))
}

func TestIdempotencyKey(t *testing.T) {
	price := NewPath(KindPricing, "p1", "price")
	v := mustValue(t, `100`, 1)
	changes := []FieldChange{{Path: price, Value: &v}}

	k1 := IdempotencyKey("alice", 3, changes)
	k2 := IdempotencyKey("alice", 3, changes)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	assert.NotEqual(t, k1, IdempotencyKey("alice", 4, changes))
	assert.NotEqual(t, k1, IdempotencyKey("alice", 3, []FieldChange{{Path: price}}))
	assert.NotEqual(t, k1, IdempotencyKey("bob", 3, changes), "same edit by another actor")

	restamped := v
	restamped.Timestamp++
	assert.NotEqual(t, k1, IdempotencyKey("alice", 3, []FieldChange{{Path: price, Value: &restamped}}))
}

func TestErrorsIs(t *testing.T) {
	verr := &ValidationError{Findings: []Finding{{
		Path: NewPath(KindPricing, "p1", "price"), Rule: "minimum", Severity: SeverityError, Message: "must be >= 0",
	}}}
	assert.True(t, errors.Is(verr, ErrValidationRejected))
	assert.Contains(t, verr.Error(), "pricing/p1/price")

	terr := &TransportError{Op: "save", Err: errors.New("boom")}
	assert.True(t, errors.Is(terr, ErrTransportFailure))
	assert.Contains(t, terr.Error(), "boom")
}

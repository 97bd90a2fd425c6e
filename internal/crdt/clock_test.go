package crdt

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/estisync/internal/models"
)

func TestNewLamportClock(t *testing.T) {
	clock := NewLamportClock("actor-1")

	require.NotNil(t, clock)
	assert.Equal(t, int64(0), clock.Current(), "Initial counter should be 0")
	assert.Equal(t, "actor-1", clock.NodeID())
}

func TestLamportClock_Next_Monotonicity(t *testing.T) {
	clock := NewLamportClock("actor-1")

	var previous int64
	for i := 0; i < 100; i++ {
		current := clock.Next()
		assert.Greater(t, current, previous, "Next should always increase")
		previous = current
	}

	assert.Equal(t, int64(100), clock.Current())
}

func TestLamportClock_Observe(t *testing.T) {
	tests := []struct {
		name     string
		local    int64
		remote   int64
		expected int64
	}{
		{name: "remote greater than local", local: 5, remote: 10, expected: 11},
		{name: "remote less than local", local: 15, remote: 10, expected: 16},
		{name: "remote equals local", local: 10, remote: 10, expected: 11},
		{name: "zero remote", local: 3, remote: 0, expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewLamportClock("actor-1")
			for clock.Current() < tt.local {
				clock.Next()
			}
			assert.Equal(t, tt.expected, clock.Observe(tt.remote))
		})
	}
}

func TestLamportClock_ObserveDocument(t *testing.T) {
	doc := models.NewDocument("doc-1")
	doc.SetField(models.NewPath(models.KindPricing, "p1", "price"),
		models.Value{Data: json.RawMessage(`1`), Timestamp: 40, NodeID: "other"})
	doc.SetField(models.NewPath(models.KindEstimate, "e1", "title"),
		models.Value{Data: json.RawMessage(`"x"`), Timestamp: 7, NodeID: "other"})

	clock := NewLamportClock("actor-1")
	clock.ObserveDocument(doc)
	assert.Equal(t, int64(40), clock.Current())

	v, err := clock.Stamp([]byte(` 12 `))
	require.NoError(t, err)
	assert.Equal(t, int64(41), v.Timestamp)
	assert.Equal(t, "actor-1", v.NodeID)
	assert.Equal(t, `12`, string(v.Data))
}

func TestLamportClock_ConcurrentNext(t *testing.T) {
	clock := NewLamportClock("actor-1")
	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				clock.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), clock.Current())
}

func BenchmarkLamportClock_Next(b *testing.B) {
	clock := NewLamportClock("bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clock.Next()
	}
}

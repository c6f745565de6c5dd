package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryPopEmptyReturnsFalse(t *testing.T) {
	q := NewQueue()
	item, ok := q.TryPop()
	assert.False(t, ok)
	assert.Nil(t, item)
}

func TestQueueOrdersByDepthThenAge(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	deep := &Item{URL: "https://example.com/deep", Depth: 2, AddedAt: now}
	shallow := &Item{URL: "https://example.com/shallow", Depth: 0, AddedAt: now.Add(time.Second)}
	mid := &Item{URL: "https://example.com/mid", Depth: 1, AddedAt: now}

	q.Push(deep)
	q.Push(shallow)
	q.Push(mid)

	first, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, shallow, first)

	second, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, mid, second)

	third, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, deep, third)
}

func TestQueueSameDepthOldestFirst(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	older := &Item{URL: "https://example.com/older", Depth: 0, AddedAt: now}
	newer := &Item{URL: "https://example.com/newer", Depth: 0, AddedAt: now.Add(time.Minute)}

	q.Push(newer)
	q.Push(older)

	first, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, older, first)
}

func TestQueueLenTracksPushAndPop(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Len())

	q.Push(&Item{URL: "https://example.com/a"})
	q.Push(&Item{URL: "https://example.com/b"})
	assert.Equal(t, 2, q.Len())

	_, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())
}

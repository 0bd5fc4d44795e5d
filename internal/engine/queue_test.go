package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/float/internal/ir"
)

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for _, typ := range []string{"a/1", "a/2", "a/3"} {
		require.True(t, q.Enqueue(request{action: ir.NewAction(typ, nil)}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a/1", "a/2", "a/3"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.action.Type)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_SignalCoalesces(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(request{})
	q.Enqueue(request{})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestRequestQueue_CloseKeepsQueuedItems(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(request{action: ir.NewAction("a/1", nil)})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(request{}))
	assert.True(t, q.isClosed())

	_, open := <-q.Wait()
	assert.False(t, open)

	r, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a/1", r.action.Type)
}

func TestRequestQueue_Drain(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(request{action: ir.NewAction("a/1", nil)})
	q.Enqueue(request{action: ir.NewAction("a/2", nil)})

	rest := q.Drain()
	assert.Len(t, rest, 2)
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

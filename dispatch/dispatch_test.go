package dispatch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitcherCancelsPreviousCall(t *testing.T) {
	var s Switcher
	ctxA, a := s.Begin(context.Background())
	ctxB, b := s.Begin(context.Background())

	assert.ErrorIs(t, ctxA.Err(), context.Canceled)
	assert.NoError(t, ctxB.Err())
	assert.False(t, s.Current(a))
	assert.True(t, s.Current(b))
	assert.NotEqual(t, a.ID, b.ID)

	s.Done(a)
	assert.NoError(t, ctxB.Err(), "finishing a stale ticket must not cancel the latest call")

	s.Done(b)
	assert.ErrorIs(t, ctxB.Err(), context.Canceled)
	assert.True(t, s.Current(b))
}

func TestSwitcherCancel(t *testing.T) {
	var s Switcher
	ctx, tk := s.Begin(context.Background())
	s.Cancel()
	assert.Error(t, ctx.Err())
	assert.False(t, s.Current(tk))
}

func TestExhausterDropsWhileInFlight(t *testing.T) {
	var e Exhauster
	release, ok := e.TryAcquire("p1")
	require.True(t, ok)

	_, ok = e.TryAcquire("p1")
	assert.False(t, ok)
	other, ok := e.TryAcquire("p2")
	assert.True(t, ok)
	other()

	release()
	release()
	assert.False(t, e.Busy("p1"))
	_, ok = e.TryAcquire("p1")
	assert.True(t, ok)
}

func TestMergerRunsEveryCall(t *testing.T) {
	var m Merger
	var n int32
	for i := 0; i < 10; i++ {
		m.Go(func() { atomic.AddInt32(&n, 1) })
	}
	m.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&n))
}

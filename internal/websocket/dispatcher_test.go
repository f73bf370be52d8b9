package websocket

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(4, 16, zap.NewNop())
	defer d.Stop()

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := d.Submit(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.EqualValues(t, 20, atomic.LoadInt32(&count))
}

func TestDispatcherRejectsWhenSaturated(t *testing.T) {
	d := NewDispatcher(1, 1, zap.NewNop())
	defer d.Stop()

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker, then fill the single queue slot.
	require.True(t, d.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.True(t, d.Submit(func() {}))

	assert.False(t, d.Submit(func() {}))
	close(block)
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	d := NewDispatcher(2, 16, zap.NewNop())

	var count int32
	for i := 0; i < 10; i++ {
		require.True(t, d.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&count, 1)
		}))
	}

	d.Stop()
	assert.EqualValues(t, 10, atomic.LoadInt32(&count))
	assert.False(t, d.Submit(func() {}))
}

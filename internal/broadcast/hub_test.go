package broadcast

import (
	"testing"
	"time"

	"stove_control/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func snapWithGas(level int) models.SystemSnapshot {
	s := models.DefaultSnapshot()
	s.GasLevel = level
	return s
}

func TestHub_InitialSnapshotThenUpdates(t *testing.T) {
	h := NewHub()
	initial := snapWithGas(1)
	ch, cancel := h.Subscribe(&initial)
	defer cancel()

	h.Publish(snapWithGas(2))

	first := <-ch
	second := <-ch
	assert.Equal(t, 1, first.GasLevel)
	assert.Equal(t, 2, second.GasLevel)
}

func TestHub_FanOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(nil)
	defer cancelA()
	b, cancelB := h.Subscribe(nil)
	defer cancelB()
	require.Equal(t, 2, h.Subscribers())

	h.Publish(snapWithGas(42))
	assert.Equal(t, 42, (<-a).GasLevel)
	assert.Equal(t, 42, (<-b).GasLevel)
}

func TestHub_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(nil)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 1; i <= subscriberBuffer*4; i++ {
			h.Publish(snapWithGas(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	var last models.SystemSnapshot
	for i := 0; i < subscriberBuffer; i++ {
		last = <-ch
	}
	assert.Equal(t, subscriberBuffer*4, last.GasLevel, "newest snapshot must survive")
}

func TestHub_CancelUnsubscribesAndCloses(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(nil)
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	assert.NotPanics(t, func() { h.Publish(snapWithGas(5)) })
}

package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireReleaseRoundTrips(t *testing.T) {
	p := newPool(2)
	assert.Equal(t, 2, p.available())

	release, ok := p.acquire(nil)
	require.True(t, ok)
	assert.Equal(t, 1, p.available())

	release()
	assert.Equal(t, 2, p.available())
}

func TestPoolAcquireBlocksWhenFull(t *testing.T) {
	p := newPool(1)
	release, ok := p.acquire(nil)
	require.True(t, ok)

	cancel := make(chan struct{})
	gaveUp := make(chan struct{})
	go func() {
		_, ok := p.acquire(cancel)
		assert.False(t, ok)
		close(gaveUp)
	}()

	time.Sleep(20 * time.Millisecond)
	close(cancel)
	<-gaveUp
	release()
}

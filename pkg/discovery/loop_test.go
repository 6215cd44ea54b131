package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/zakuro/pkg/events"
	"github.com/cuemby/zakuro/pkg/registry"
)

func fakeInfoServer(t *testing.T) (endpoint string, cleanup func()) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "probe-worker",
			"worker_type": "cpu",
			"resources": {"cpus_total": 4, "cpus_available": 4, "memory_total": 1073741824, "memory_available": 1073741824, "gpus_total": 0, "gpus_available": 0},
			"hardware": {},
			"pricing": {"cpu_price": 0.001, "memory_price": 0.0005, "gpu_price": 0, "min_charge": 0.0001},
			"tags": ["gpu-free"]
		}`))
	})
	ts := httptest.NewServer(mux)
	return strings.TrimPrefix(ts.URL, "http://"), ts.Close
}

func TestProberProbeDecodesInfo(t *testing.T) {
	endpoint, cleanup := fakeInfoServer(t)
	defer cleanup()

	p := NewProber()
	worker, latencyMs, err := p.Probe(context.Background(), endpoint)
	require.NoError(t, err)
	require.Equal(t, "probe-worker", worker.Name)
	require.Equal(t, endpoint, worker.Endpoint)
	require.Equal(t, 4.0, worker.CPUsTotal)
	require.Equal(t, []string{"gpu-free"}, worker.Tags)
	require.GreaterOrEqual(t, latencyMs, 0.0)
}

func TestProberProbeFailsOnUnreachablePeer(t *testing.T) {
	p := NewProber()
	_, _, err := p.Probe(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
}

func TestLoopTickPopulatesRegistry(t *testing.T) {
	endpoint, cleanup := fakeInfoServer(t)
	defer cleanup()

	reg := registry.New()
	loop := NewLoop([]string{endpoint}, time.Second, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	loop.tick(ctx)
	cancel()

	worker, ok := reg.Get(endpoint)
	require.True(t, ok)
	require.Equal(t, "probe-worker", worker.Name)
}

func TestLoopTickDoesNotRegisterDeadPeer(t *testing.T) {
	reg := registry.New()
	loop := NewLoop([]string{"127.0.0.1:1"}, time.Second, reg, nil)
	loop.tick(context.Background())
	_, ok := reg.Get("127.0.0.1:1")
	require.False(t, ok)
}

func TestLoopTickPublishesWorkerJoinedOnce(t *testing.T) {
	endpoint, cleanup := fakeInfoServer(t)
	defer cleanup()

	reg := registry.New()
	evBroker := events.NewBroker()
	evBroker.Start()
	defer evBroker.Stop()
	sub := evBroker.Subscribe()
	defer evBroker.Unsubscribe(sub)

	loop := NewLoop([]string{endpoint}, time.Second, reg, evBroker)
	loop.tick(context.Background())

	select {
	case event := <-sub:
		require.Equal(t, events.EventWorkerJoined, event.Type)
		require.Equal(t, endpoint, event.Metadata["endpoint"])
	case <-time.After(time.Second):
		t.Fatal("expected a worker.joined event")
	}

	// Second tick against the same already-known peer must not
	// re-publish worker.joined.
	loop.tick(context.Background())
	select {
	case event := <-sub:
		t.Fatalf("unexpected second event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

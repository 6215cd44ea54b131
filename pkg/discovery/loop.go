package discovery

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/zakuro/pkg/events"
	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/registry"
	"github.com/cuemby/zakuro/pkg/types"
)

// Loop is the broker's peer discovery ticker: it is the only code that
// adds or updates worker records in the registry.
type Loop struct {
	peers    []string
	interval time.Duration
	registry *registry.Registry
	prober   *Prober
	events   *events.Broker
}

// NewLoop builds a discovery loop over peers, ticking every interval.
// eventsBroker may be nil, in which case worker lifecycle transitions
// simply aren't published.
func NewLoop(peers []string, interval time.Duration, reg *registry.Registry, eventsBroker *events.Broker) *Loop {
	return &Loop{
		peers:    peers,
		interval: interval,
		registry: reg,
		prober:   NewProber(),
		events:   eventsBroker,
	}
}

// Run blocks, probing every peer on each tick, until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick probes every peer concurrently, bounded by len(peers) in-flight
// probes (errgroup imposes no further limit: one probe per peer is the
// natural ceiling here).
func (l *Loop) tick(ctx context.Context) {
	g, gCtx := errgroup.WithContext(ctx)
	for _, peer := range l.peers {
		peer := peer
		g.Go(func() error {
			l.probeOne(gCtx, peer)
			return nil
		})
	}
	_ = g.Wait()
	metrics.DiscoveryCyclesTotal.Inc()
}

func (l *Loop) probeOne(ctx context.Context, peer string) {
	existing, wasKnown := l.registry.Get(peer)
	wasHealthy := wasKnown && existing.Status == types.WorkerHealthy

	worker, latencyMs, err := l.prober.Probe(ctx, peer)
	if err != nil {
		l.registry.ObserveFailure(peer)
		log.WithComponent("discovery").Debug().Str("peer", peer).Err(err).Msg("probe failed")
		if wasHealthy {
			l.publish(events.EventWorkerUnhealthy, "worker "+peer+" stopped responding to probes", peer)
		}
		return
	}
	l.registry.Observe(worker, latencyMs)
	if !wasKnown {
		l.publish(events.EventWorkerJoined, "worker "+peer+" joined the mesh", peer)
	}
}

func (l *Loop) publish(t events.EventType, message, endpoint string) {
	if l.events == nil {
		return
	}
	l.events.Publish(&events.Event{
		Type:     t,
		Message:  message,
		Metadata: map[string]string{"endpoint": endpoint},
	})
}

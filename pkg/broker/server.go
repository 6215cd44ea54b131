package broker

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/cuemby/zakuro/pkg/affinity"
	"github.com/cuemby/zakuro/pkg/config"
	"github.com/cuemby/zakuro/pkg/events"
	"github.com/cuemby/zakuro/pkg/ledger"
	"github.com/cuemby/zakuro/pkg/registry"
	"github.com/cuemby/zakuro/pkg/selector"
)

// Version is reported in the health responses of the broker's metrics
// server.
const Version = "0.2.0"

// Server is the zc broker façade: stateless HTTP handlers over the
// registry, ledger, and affinity table, which hold all the mutable
// state.
type Server struct {
	cfg       config.BrokerConfig
	registry  *registry.Registry
	ledger    *ledger.Ledger
	affinity  *affinity.Table
	events    *events.Broker
	rr        *selector.RoundRobinCounter
	limiters  *limiterStore
	forwarder *http.Client
}

// NewServer wires a Server over already-constructed registry, ledger,
// and affinity components (the caller owns their lifecycle: Start/Stop
// is not this package's responsibility). The server owns its own event
// broker and starts it immediately; callers that want to observe
// pipeline events (for audit logging, metrics fan-out, or tests) should
// subscribe via Events().
func NewServer(cfg config.BrokerConfig, reg *registry.Registry, led *ledger.Ledger, aff *affinity.Table) *Server {
	eventsBroker := events.NewBroker()
	eventsBroker.Start()
	return &Server{
		cfg:      cfg,
		registry: reg,
		ledger:   led,
		affinity: aff,
		events:   eventsBroker,
		rr:       &selector.RoundRobinCounter{},
		limiters: newLimiterStore(0),
		forwarder: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 300 * time.Second,
			},
			Timeout: 300 * time.Second,
		},
	}
}

// Events returns the broker's internal event stream, for subscribers
// that want to observe worker, task, and credit lifecycle events.
func (s *Server) Events() *events.Broker {
	return s.events
}

// Close releases the server's background resources (currently just the
// event broker). Safe to call even if Run was never invoked.
func (s *Server) Close() {
	s.events.Stop()
}

// Handler returns the routed HTTP handler for this broker.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.POST("/execute", s.handleExecute)
	r.GET("/workers", s.handleWorkers)
	r.GET("/credits/:user", s.handleGetCredits)
	r.POST("/credits/:user/add", s.handleAddCredits)
	r.POST("/price", s.handlePrice)
	r.GET("/me", s.handleMe)
	r.GET("/health", s.handleHealth)
	return r
}

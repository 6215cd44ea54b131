package worker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/zakuro/pkg/log"
)

// Run starts the worker's HTTP server and blocks until it exits. The
// server uses a 300s read / 60s write deadline (spec §4.1); the broker's
// forwarding client allows 300s per call.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	fields := s.startupFields()
	log.WithComponent("worker").Info().
		Str("addr", addr).
		Int("pool_size", s.pool.size()).
		Str("memory", fields["memory"]).
		Msg("worker listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("worker server: %w", err)
	}
	return nil
}

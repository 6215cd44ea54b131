package broker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/zakuro/pkg/log"
)

// Run starts the broker's HTTP server and blocks until it exits. The
// read deadline is generous to cover the worst-case forwarded /execute
// call (worker side allows up to 300s itself).
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	log.WithComponent("broker").Info().
		Str("addr", addr).
		Bool("local_mode", s.cfg.LocalMode).
		Msg("broker listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("broker server: %w", err)
	}
	return nil
}

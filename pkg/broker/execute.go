package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/cuemby/zakuro/pkg/envelope"
	"github.com/cuemby/zakuro/pkg/events"
	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/selector"
	"github.com/cuemby/zakuro/pkg/types"
	"github.com/cuemby/zakuro/pkg/zerr"
)

// handleExecute implements spec.md §4.6's nine-step pipeline:
// authenticate, parse requirements, pick a worker (selector or
// affinity), reserve, forward, settle or refund, record affinity, and
// respond with cost headers.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	userID := resolveUserID(r)

	var userRPS float64
	if user, err := s.ledger.User(userID); err == nil {
		userRPS = user.RateLimitRPS
	}
	if !s.limiters.allow(userID, userRPS) {
		s.writeError(w, "", zerr.New(zerr.KindRateLimited, "rate limit exceeded"))
		return
	}

	reqs := types.DefaultRequirements()
	if h := r.Header.Get("X-Zakuro-Requirements"); h != "" {
		if err := json.Unmarshal([]byte(h), &reqs); err != nil {
			s.writeError(w, "", zerr.New(zerr.KindBadRequest, "invalid X-Zakuro-Requirements: "+err.Error()))
			return
		}
		if reqs.Strategy == "" {
			reqs.Strategy = types.DefaultStrategy
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, "", zerr.New(zerr.KindBadRequest, "read body: "+err.Error()))
		return
	}

	env, err := envelope.Peek(body)
	if err != nil {
		s.writeError(w, "", zerr.New(zerr.KindBadRequest, "invalid envelope: "+err.Error()))
		return
	}

	worker, zerrResp := s.pickWorker(env, reqs)
	if zerrResp != nil {
		s.writeError(w, string(reqs.Strategy), zerrResp)
		return
	}

	maxMicros := types.CreditsToMicros(worker.ProjectedCost(reqs))
	correlationID := uuid.NewString()
	if err := s.ledger.Reserve(userID, maxMicros, correlationID); err != nil {
		s.writeError(w, string(reqs.Strategy), err)
		return
	}
	s.events.Publish(&events.Event{
		Type:     events.EventCreditReserved,
		Message:  fmt.Sprintf("reserved %.6f credits for %s", types.MicrosToCredits(maxMicros), userID),
		Metadata: map[string]string{"user_id": userID, "correlation_id": correlationID},
	})

	s.registry.AdjustInFlight(worker.Endpoint, 1)
	metrics.WorkersInFlight.Set(float64(s.registry.InFlightTotal()))
	fwdStart := time.Now()
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	respBody, status, fwdErr := s.forward(context.WithoutCancel(r.Context()), worker.Endpoint, body, contentType)
	d := time.Since(fwdStart)
	s.registry.AdjustInFlight(worker.Endpoint, -1)
	metrics.WorkersInFlight.Set(float64(s.registry.InFlightTotal()))
	metrics.ForwardDuration.Observe(d.Seconds())

	if fwdErr != nil {
		_ = s.ledger.Refund(correlationID)
		s.registry.MarkUnhealthy(worker.Endpoint)
		s.events.Publish(&events.Event{
			Type:     events.EventWorkerDown,
			Message:  "worker " + worker.Endpoint + " marked unhealthy: " + fwdErr.Error(),
			Metadata: map[string]string{"endpoint": worker.Endpoint},
		})
		s.events.Publish(&events.Event{
			Type:     events.EventCreditRefunded,
			Message:  "refunded reservation " + correlationID,
			Metadata: map[string]string{"user_id": userID, "correlation_id": correlationID},
		})
		s.events.Publish(&events.Event{
			Type:     events.EventTaskFailed,
			Message:  "task forwarded to " + worker.Endpoint + " failed: " + fwdErr.Error(),
			Metadata: map[string]string{"endpoint": worker.Endpoint, "correlation_id": correlationID},
		})
		s.writeError(w, string(reqs.Strategy), zerr.Wrap(zerr.KindWorkerUnreachable, "worker unreachable", fwdErr))
		return
	}
	if status != http.StatusOK {
		_ = s.ledger.Refund(correlationID)
		s.events.Publish(&events.Event{
			Type:     events.EventCreditRefunded,
			Message:  "refunded reservation " + correlationID,
			Metadata: map[string]string{"user_id": userID, "correlation_id": correlationID},
		})
		s.events.Publish(&events.Event{
			Type:     events.EventTaskFailed,
			Message:  fmt.Sprintf("task forwarded to %s returned status %d", worker.Endpoint, status),
			Metadata: map[string]string{"endpoint": worker.Endpoint, "correlation_id": correlationID},
		})
		s.writeError(w, string(reqs.Strategy), zerr.New(zerr.KindWorkerUnreachable, fmt.Sprintf("worker returned status %d", status)))
		return
	}

	actualReqs := reqs
	actualReqs.EstimatedDurationSecs = d.Seconds()
	actualMicros := types.CreditsToMicros(worker.ProjectedCost(actualReqs))
	if err := s.ledger.Settle(correlationID, actualMicros); err != nil {
		log.WithComponent("broker").Error().Err(err).Str("correlation_id", correlationID).Msg("settle failed")
	} else {
		s.events.Publish(&events.Event{
			Type:     events.EventCreditSettled,
			Message:  fmt.Sprintf("settled %.6f credits for %s", types.MicrosToCredits(actualMicros), userID),
			Metadata: map[string]string{"user_id": userID, "correlation_id": correlationID},
		})
	}
	s.events.Publish(&events.Event{
		Type:     events.EventTaskCompleted,
		Message:  "task forwarded to " + worker.Endpoint + " completed",
		Metadata: map[string]string{"endpoint": worker.Endpoint, "correlation_id": correlationID},
	})

	if env.Action == envelope.ActionCreateInstance {
		var created envelope.CreateInstanceResult
		if err := json.Unmarshal(respBody, &created); err == nil && created.InstanceID != "" {
			s.affinity.Bind(created.InstanceID, worker.Endpoint, userID)
			s.events.Publish(&events.Event{
				Type:     events.EventInstanceCreated,
				Message:  "instance " + created.InstanceID + " bound to " + worker.Endpoint,
				Metadata: map[string]string{"instance_id": created.InstanceID, "endpoint": worker.Endpoint, "user_id": userID},
			})
		}
	}

	balanceMicros, _ := s.ledger.Balance(userID)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Zakuro-Cost", fmt.Sprintf("%.6f", types.MicrosToCredits(actualMicros)))
	w.Header().Set("X-Zakuro-Credits-Remaining", fmt.Sprintf("%.6f", types.MicrosToCredits(balanceMicros)))
	w.Header().Set("X-Zakuro-Worker", worker.Name)
	w.Header().Set("X-Zakuro-Duration-Ms", strconv.FormatInt(d.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBody)

	metrics.RequestsTotal.WithLabelValues(string(reqs.Strategy), "200").Inc()
	metrics.RequestDuration.WithLabelValues(string(reqs.Strategy)).Observe(time.Since(start).Seconds())
}

// pickWorker resolves the worker for env: affinity routing for a known
// call_method instance, or the selector over a fresh registry
// snapshot otherwise.
func (s *Server) pickWorker(env *envelope.Envelope, reqs types.Requirements) (*types.Worker, *zerr.Error) {
	if env.Action == envelope.ActionCallMethod && env.InstanceID != "" {
		endpoint, ok := s.affinity.Lookup(env.InstanceID)
		if !ok {
			metrics.AffinityLostTotal.Inc()
			s.events.Publish(&events.Event{
				Type:     events.EventAffinityLost,
				Message:  "no affinity binding for instance " + env.InstanceID,
				Metadata: map[string]string{"instance_id": env.InstanceID},
			})
			return nil, zerr.New(zerr.KindAffinityLost, "no affinity binding for instance "+env.InstanceID)
		}
		worker, ok := s.registry.Get(endpoint)
		if !ok || worker.Status != types.WorkerHealthy {
			s.affinity.Evict(env.InstanceID)
			metrics.AffinityLostTotal.Inc()
			s.events.Publish(&events.Event{
				Type:     events.EventAffinityLost,
				Message:  "affinity worker " + endpoint + " no longer healthy for instance " + env.InstanceID,
				Metadata: map[string]string{"instance_id": env.InstanceID, "endpoint": endpoint},
			})
			return nil, zerr.New(zerr.KindAffinityLost, "affinity worker no longer healthy")
		}
		return worker, nil
	}

	snapshot := s.registry.Snapshot()
	worker, err := selector.Select(reqs, reqs.Strategy, snapshot, s.rr)
	if err != nil {
		metrics.SelectorDecisionsTotal.WithLabelValues(string(reqs.Strategy), "none_available").Inc()
		return nil, zerr.New(zerr.KindNoWorkersAvailable, "no workers available")
	}
	metrics.SelectorDecisionsTotal.WithLabelValues(string(reqs.Strategy), "selected").Inc()
	return worker, nil
}

func (s *Server) forward(ctx context.Context, endpoint string, body []byte, contentType string) ([]byte, int, error) {
	url := "http://" + endpoint + "/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.forwarder.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return out, resp.StatusCode, nil
}

// writeError maps err onto an HTTP status via zerr and records the
// outcome in zakuro_requests_total when strategy is known.
func (s *Server) writeError(w http.ResponseWriter, strategy string, err error) {
	status := http.StatusInternalServerError
	if ze, ok := zerr.As(err); ok {
		status = zerr.StatusCode(ze.Kind)
	}
	if strategy != "" {
		metrics.RequestsTotal.WithLabelValues(strategy, strconv.Itoa(status)).Inc()
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package broker

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/cuemby/zakuro/pkg/selector"
	"github.com/cuemby/zakuro/pkg/types"
	"github.com/cuemby/zakuro/pkg/zerr"
)

type workerView struct {
	Name          string   `json:"name"`
	Endpoint      string   `json:"endpoint"`
	Status        string   `json:"status"`
	CPUsTotal     float64  `json:"cpus_total"`
	CPUsAvailable float64  `json:"cpus_available"`
	MemoryTotal   int64    `json:"memory_total_bytes"`
	GPUsTotal     int      `json:"gpus_total"`
	LatencyMs     float64  `json:"latency_ms"`
	InFlight      int64    `json:"in_flight"`
	Tags          []string `json:"tags"`
}

type workersResponse struct {
	Total   int          `json:"total"`
	Workers []workerView `json:"workers"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	snapshot := s.registry.Snapshot()
	views := make([]workerView, 0, len(snapshot))
	for _, worker := range snapshot {
		views = append(views, workerView{
			Name:          worker.Name,
			Endpoint:      worker.Endpoint,
			Status:        string(worker.Status),
			CPUsTotal:     worker.CPUsTotal,
			CPUsAvailable: worker.CPUsAvailable,
			MemoryTotal:   worker.MemoryTotalBytes,
			GPUsTotal:     worker.GPUsTotal,
			LatencyMs:     worker.LatencyEWMAMs,
			InFlight:      worker.InFlight,
			Tags:          worker.Tags,
		})
	}
	writeJSON(w, http.StatusOK, workersResponse{Total: len(views), Workers: views})
}

type creditsResponse struct {
	UserID     string  `json:"user_id"`
	Balance    float64 `json:"balance"`
	TotalSpent float64 `json:"total_spent"`
	RateLimit  float64 `json:"rate_limit"`
}

func (s *Server) handleGetCredits(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	userID := ps.ByName("user")
	user, err := s.ledger.User(userID)
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{
		UserID:     user.UserID,
		Balance:    types.MicrosToCredits(user.BalanceMicros),
		TotalSpent: types.MicrosToCredits(user.TotalSpentMicros),
		RateLimit:  user.RateLimitRPS,
	})
}

type addCreditsRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("user")

	var req addCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "", zerr.New(zerr.KindBadRequest, "invalid request body: "+err.Error()))
		return
	}
	if req.Amount <= 0 {
		s.writeError(w, "", zerr.New(zerr.KindBadRequest, "amount must be positive"))
		return
	}

	if err := s.ledger.Add(userID, types.CreditsToMicros(req.Amount), req.Description); err != nil {
		s.writeError(w, "", err)
		return
	}

	user, err := s.ledger.User(userID)
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{
		UserID:     user.UserID,
		Balance:    types.MicrosToCredits(user.BalanceMicros),
		TotalSpent: types.MicrosToCredits(user.TotalSpentMicros),
		RateLimit:  user.RateLimitRPS,
	})
}

type priceResponse struct {
	MinCost         float64 `json:"min_cost"`
	MaxCost         float64 `json:"max_cost"`
	MatchingWorkers int     `json:"matching_workers"`
}

// handlePrice estimates a cost range over every currently eligible
// worker without reserving or forwarding anything.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reqs := types.DefaultRequirements()
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		s.writeError(w, "", zerr.New(zerr.KindBadRequest, "invalid request body: "+err.Error()))
		return
	}
	if reqs.Strategy == "" {
		reqs.Strategy = types.DefaultStrategy
	}

	snapshot := s.registry.Snapshot()
	eligible := selector.EligibleWorkers(snapshot, reqs)
	if len(eligible) == 0 {
		writeJSON(w, http.StatusOK, priceResponse{MatchingWorkers: 0})
		return
	}

	minCost, maxCost := eligible[0].ProjectedCost(reqs), eligible[0].ProjectedCost(reqs)
	for _, worker := range eligible[1:] {
		cost := worker.ProjectedCost(reqs)
		if cost < minCost {
			minCost = cost
		}
		if cost > maxCost {
			maxCost = cost
		}
	}

	writeJSON(w, http.StatusOK, priceResponse{
		MinCost:         minCost,
		MaxCost:         maxCost,
		MatchingWorkers: len(eligible),
	})
}

type meResponse struct {
	UserID          string  `json:"user_id"`
	Balance         float64 `json:"balance"`
	LedgerConnected bool    `json:"ledger_connected"`
	LocalMode       bool    `json:"local_mode"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := resolveUserID(r)
	user, err := s.ledger.User(userID)
	if err != nil {
		s.writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:          user.UserID,
		Balance:         types.MicrosToCredits(user.BalanceMicros),
		LedgerConnected: true,
		LocalMode:       s.cfg.LocalMode,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

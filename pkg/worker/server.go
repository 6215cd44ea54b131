package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/docker/go-units"
	"github.com/julienschmidt/httprouter"
	"github.com/pbnjay/memory"

	"github.com/cuemby/zakuro/pkg/config"
	"github.com/cuemby/zakuro/pkg/envelope"
	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
)

// Version is reported on /info and /.
const Version = "0.2.0"

// Server is a zakuro worker: an HTTP server executing opaque task
// envelopes on a fixed-size pool.
type Server struct {
	cfg       config.WorkerConfig
	pool      *pool
	registry  *Registry
	instances *instanceStore
	startedAt time.Time
}

// NewServer builds a worker bound to cfg, dispatching execute/
// create_instance/call_method actions against registry.
func NewServer(cfg config.WorkerConfig, registry *Registry) *Server {
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Server{
		cfg:       cfg,
		pool:      newPool(size),
		registry:  registry,
		instances: newInstanceStore(),
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler for this worker.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.GET("/health", s.handleHealth)
	r.GET("/info", s.handleInfo)
	r.POST("/execute", s.handleExecute)
	r.GET("/", s.handleRoot)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "zakuro worker",
		"version": Version,
	})
}

type infoResponse struct {
	Name       string         `json:"name"`
	WorkerType string         `json:"worker_type"`
	Version    string         `json:"version"`
	Resources  infoResources  `json:"resources"`
	Hardware   infoHardware   `json:"hardware"`
	Pricing    infoPricing    `json:"pricing"`
	Tags       []string       `json:"tags"`
}

type infoResources struct {
	CPUsTotal       float64 `json:"cpus_total"`
	CPUsAvailable   float64 `json:"cpus_available"`
	MemoryTotal     int64   `json:"memory_total"`
	MemoryAvailable int64   `json:"memory_available"`
	GPUsTotal       int     `json:"gpus_total"`
	GPUsAvailable   int     `json:"gpus_available"`
}

type infoHardware struct {
	CPUModel   string `json:"cpu_model,omitempty"`
	GPUModel   string `json:"gpu_model,omitempty"`
	GPUVRAMGiB int    `json:"gpu_vram_gb,omitempty"`
	StorageGiB int64  `json:"storage_gb,omitempty"`
}

type infoPricing struct {
	CPUPrice  float64 `json:"cpu_price"`
	MemPrice  float64 `json:"memory_price"`
	GPUPrice  float64 `json:"gpu_price"`
	MinCharge float64 `json:"min_charge"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	// cpus always reflects the host's actual core count; there is no
	// ZAKURO_CPU_COUNT override to cap it, unlike GPUsTotal/MemoryTotalBytes.
	cpus := float64(runtime.NumCPU())

	memTotal := s.cfg.MemoryTotalBytes
	if memTotal <= 0 {
		memTotal = int64(memory.TotalMemory())
	}
	memAvailable := int64(memory.FreeMemory())
	if memAvailable <= 0 || memAvailable > memTotal {
		memAvailable = memTotal
	}

	name := s.cfg.Name
	if name == "" {
		host, _ := os.Hostname()
		name = fmt.Sprintf("worker-%s", host)
	}

	cpusInUse := float64(s.pool.size() - s.pool.available())
	cpusAvailable := cpus - cpusInUse
	if cpusAvailable < 0 {
		cpusAvailable = 0
	}

	resp := infoResponse{
		Name:       name,
		WorkerType: s.cfg.Type,
		Version:    Version,
		Resources: infoResources{
			CPUsTotal:       cpus,
			CPUsAvailable:   cpusAvailable,
			MemoryTotal:     memTotal,
			MemoryAvailable: memAvailable,
			GPUsTotal:       s.cfg.GPUsTotal,
			GPUsAvailable:   s.cfg.GPUsTotal,
		},
		Hardware: infoHardware{},
		Pricing: infoPricing{
			CPUPrice:  s.cfg.CPUPrice,
			MemPrice:  s.cfg.MemPrice,
			GPUPrice:  s.cfg.GPUPrice,
			MinCharge: s.cfg.MinCharge,
		},
		Tags: s.cfg.Tags,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}

	env, err := envelope.Peek(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decode envelope: " + err.Error()})
		return
	}

	release, ok := s.pool.acquire(r.Context().Done())
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker not ready"})
		return
	}
	metrics.PoolInUse.Set(float64(s.pool.size() - s.pool.available()))
	defer func() {
		release()
		metrics.PoolInUse.Set(float64(s.pool.size() - s.pool.available()))
	}()

	res, err := s.execute(env)
	if err != nil {
		metrics.TasksExecutedTotal.WithLabelValues(string(env.Action), "decode_error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	outcome := "success"
	if res.Error != "" {
		outcome = "task_error"
	}
	metrics.TasksExecutedTotal.WithLabelValues(string(env.Action), outcome).Inc()
	metrics.InstancesTotal.Set(float64(s.instances.len()))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.WithComponent("worker").Error().Err(err).Msg("write execute response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// units.HumanSize is exercised here so startup logging reports memory
// the way an operator reads it, not as a raw byte count.
func (s *Server) startupFields() map[string]string {
	memTotal := s.cfg.MemoryTotalBytes
	if memTotal <= 0 {
		memTotal = int64(memory.TotalMemory())
	}
	return map[string]string{
		"memory": units.HumanSize(float64(memTotal)),
	}
}

package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/zakuro/pkg/types"
)

// probeTimeout bounds a single /info request, independent of the
// overall tick interval.
const probeTimeout = 2 * time.Second

// infoPayload mirrors the JSON shape a worker's GET /info returns.
// Field names match pkg/worker's infoResponse exactly so no adapter
// layer is needed between the two processes.
type infoPayload struct {
	Name       string   `json:"name"`
	WorkerType string   `json:"worker_type"`
	Resources  struct {
		CPUsTotal       float64 `json:"cpus_total"`
		CPUsAvailable   float64 `json:"cpus_available"`
		MemoryTotal     int64   `json:"memory_total"`
		MemoryAvailable int64   `json:"memory_available"`
		GPUsTotal       int     `json:"gpus_total"`
		GPUsAvailable   int     `json:"gpus_available"`
	} `json:"resources"`
	Hardware struct {
		CPUModel   string `json:"cpu_model"`
		GPUModel   string `json:"gpu_model"`
		GPUVRAMGiB int    `json:"gpu_vram_gb"`
		StorageGiB int64  `json:"storage_gb"`
	} `json:"hardware"`
	Pricing struct {
		CPUPrice  float64 `json:"cpu_price"`
		MemPrice  float64 `json:"memory_price"`
		GPUPrice  float64 `json:"gpu_price"`
		MinCharge float64 `json:"min_charge"`
	} `json:"pricing"`
	Tags []string `json:"tags"`
}

// Prober fetches and decodes one worker's /info endpoint.
type Prober struct {
	client *http.Client
}

// NewProber builds a Prober with its own short-lived HTTP client,
// independent of the broker's forwarding client (which uses the much
// longer /execute deadline).
func NewProber() *Prober {
	return &Prober{client: &http.Client{Timeout: probeTimeout}}
}

// Probe fetches endpoint's /info and converts it to a registry-ready
// worker record, along with the observed round-trip latency in
// milliseconds.
func (p *Prober) Probe(ctx context.Context, endpoint string) (*types.Worker, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+endpoint+"/info", nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode != http.StatusOK {
		return nil, latencyMs, fmt.Errorf("discovery: %s returned status %d", endpoint, resp.StatusCode)
	}

	var payload infoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, latencyMs, fmt.Errorf("discovery: decode %s /info: %w", endpoint, err)
	}

	worker := &types.Worker{
		Name:                 payload.Name,
		Endpoint:             endpoint,
		WorkerType:           payload.WorkerType,
		CPUsTotal:            payload.Resources.CPUsTotal,
		CPUsAvailable:        payload.Resources.CPUsAvailable,
		MemoryTotalBytes:     payload.Resources.MemoryTotal,
		MemoryAvailableBytes: payload.Resources.MemoryAvailable,
		GPUsTotal:            payload.Resources.GPUsTotal,
		GPUsAvailable:        payload.Resources.GPUsAvailable,
		PricePerCPUSecond:    payload.Pricing.CPUPrice,
		PricePerGiBSecond:    payload.Pricing.MemPrice,
		PricePerGPUSecond:    payload.Pricing.GPUPrice,
		MinCharge:            payload.Pricing.MinCharge,
		CPUModel:             payload.Hardware.CPUModel,
		GPUModel:             payload.Hardware.GPUModel,
		GPUVRAMGiB:           payload.Hardware.GPUVRAMGiB,
		StorageGiB:           payload.Hardware.StorageGiB,
		Tags:                 payload.Tags,
	}
	return worker, latencyMs, nil
}

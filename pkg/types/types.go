package types

import "time"

// WorkerStatus represents the health state of a worker as seen by discovery.
type WorkerStatus string

const (
	WorkerHealthy   WorkerStatus = "healthy"
	WorkerUnhealthy WorkerStatus = "unhealthy"
	WorkerDraining  WorkerStatus = "draining"
)

// Strategy selects the worker-selection policy for a request.
type Strategy string

const (
	StrategyBestPrice        Strategy = "best_price"
	StrategyBestLatency      Strategy = "best_latency"
	StrategyBestAvailability Strategy = "best_availability"
	StrategyRoundRobin       Strategy = "round_robin"
)

// DefaultStrategy is used when a request omits one.
const DefaultStrategy = StrategyBestPrice

// Worker is the registry's record of a discovered compute worker.
//
// Invariant: Available <= Total for every resource dimension. A worker is
// eligible for new requests only while Status == WorkerHealthy and
// InFlight < CPUsTotal (soft cap).
type Worker struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`

	CPUsTotal     float64 `json:"cpus_total"`
	CPUsAvailable float64 `json:"cpus_available"`

	MemoryTotalBytes     int64 `json:"memory_total_bytes"`
	MemoryAvailableBytes int64

	GPUsTotal     int `json:"gpus_total"`
	GPUsAvailable int

	PricePerCPUSecond float64
	PricePerGiBSecond float64
	PricePerGPUSecond float64
	MinCharge         float64

	WorkerType string
	Tags       []string `json:"tags"`

	CPUModel   string
	GPUModel   string
	GPUVRAMGiB int
	StorageGiB int64

	Status     WorkerStatus `json:"status"`
	LastSeenMs int64

	// LatencyEWMAMs is the exponentially weighted moving average of /info
	// round-trip latency in milliseconds, updated with alpha=0.3.
	LatencyEWMAMs float64 `json:"latency_ms"`

	// InFlight is the number of requests currently forwarded to this
	// worker and not yet settled or refunded. It is a hint, not a hard
	// limit: selection may race against settlement (spec section 5).
	InFlight int64 `json:"in_flight"`

	ConsecutiveFailures int
}

// ProjectedCost returns the cost of running reqs.EstimatedDurationSecs on
// this worker at its current pricing, respecting MinCharge.
func (w *Worker) ProjectedCost(reqs Requirements) float64 {
	d := reqs.EstimatedDurationSecs
	gib := float64(reqs.MemoryBytes) / (1 << 30)
	cost := reqs.CPUs*w.PricePerCPUSecond*d +
		gib*w.PricePerGiBSecond*d +
		float64(reqs.GPUs)*w.PricePerGPUSecond*d
	if cost < w.MinCharge {
		return w.MinCharge
	}
	return cost
}

// AvailabilityRatio returns cpus_available / cpus_total, used by the
// best_availability strategy. Returns 0 if the worker reports no capacity.
func (w *Worker) AvailabilityRatio() float64 {
	if w.CPUsTotal <= 0 {
		return 0
	}
	return w.CPUsAvailable / w.CPUsTotal
}

// User is the ledger's per-account balance record.
//
// Invariant: BalanceMicros >= 0 at all times; a debit that would violate
// this fails atomically. Balances are fixed-point credit units scaled by
// 1e6 (see MicrosPerCredit).
type User struct {
	UserID           string
	BalanceMicros    int64
	TotalSpentMicros int64

	// RateLimitRPS is the per-user request rate limit. Zero means
	// unlimited.
	RateLimitRPS float64
}

// MicrosPerCredit is the fixed-point scale for balances and ledger deltas:
// one credit is 1_000_000 micros.
const MicrosPerCredit = 1_000_000

// CreditsToMicros converts a float credit amount to fixed-point micros,
// rounding to the nearest micro.
func CreditsToMicros(credits float64) int64 {
	return int64(credits*MicrosPerCredit + 0.5)
}

// MicrosToCredits converts fixed-point micros back to a float credit amount.
func MicrosToCredits(micros int64) float64 {
	return float64(micros) / MicrosPerCredit
}

// LedgerEntryState distinguishes the lifecycle stage of a ledger entry.
type LedgerEntryState string

const (
	LedgerStateReserved LedgerEntryState = "reserved"
	LedgerStateSettled  LedgerEntryState = "settled"
	LedgerStateRefunded LedgerEntryState = "refunded"
	LedgerStateDeposit  LedgerEntryState = "deposit"
)

// LedgerEntry is one append-only row in a user's transaction history.
//
// sum(DeltaMicros for a user) must always equal that user's BalanceMicros.
// Reservation entries have a matching settlement or refund entry with the
// same CorrelationID.
type LedgerEntry struct {
	Timestamp     time.Time
	UserID        string
	DeltaMicros   int64
	Reason        string
	CorrelationID string
	State         LedgerEntryState
}

// Requirements describes what a /execute request needs from a worker.
// Requirements are advisory for selection and authoritative for the
// pre-authorization upper-bound cost.
type Requirements struct {
	CPUs                  float64  `json:"cpus"`
	MemoryBytes           int64    `json:"memory_bytes"`
	GPUs                  int      `json:"gpus"`
	EstimatedDurationSecs float64  `json:"estimated_duration_secs"`
	Strategy              Strategy `json:"strategy,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
}

// DefaultRequirements returns the defaults the broker applies when a
// request omits X-Zakuro-Requirements fields.
func DefaultRequirements() Requirements {
	return Requirements{
		CPUs:                  1,
		MemoryBytes:           1 << 30, // 1 GiB
		GPUs:                  0,
		EstimatedDurationSecs: 1,
		Strategy:              DefaultStrategy,
	}
}

// AffinityEntry binds a stateful instance to the one worker it was
// created on. All calls for an InstanceID must route to the same worker
// while the entry lives.
type AffinityEntry struct {
	InstanceID     string
	WorkerEndpoint string
	OwnerUserID    string
	CreatedAt      time.Time
	LastUsedAt     time.Time
}

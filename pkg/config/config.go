// Package config reads ZAKURO_* environment variables into typed
// configuration structs for the broker and worker binaries. No config
// file format is parsed; this is a deliberate Non-goal (see
// DESIGN.md).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// WorkerConfig configures a single zc-worker process.
type WorkerConfig struct {
	Name      string
	Type      string
	Host      string
	Port      int
	CPUPrice  float64
	MemPrice  float64
	GPUPrice  float64
	MinCharge float64
	Tags      []string

	// GPUsTotal is not auto-detected (no nvidia-smi wrapper in the
	// pack); it must be set via ZAKURO_GPU_COUNT to advertise GPUs.
	GPUsTotal int

	// MemoryTotalBytes overrides auto-detection via pbnjay/memory when
	// set (ZAKURO_MEMORY_TOTAL).
	MemoryTotalBytes int64

	PoolSize int
}

// BrokerConfig configures a single zc-broker process.
type BrokerConfig struct {
	Host string
	Port int

	Peers []string
	P2P   bool

	// DataDir is where BoltStore keeps zakuro.db. Empty when LocalMode
	// is set.
	DataDir   string
	LocalMode bool

	ReservationTTL    time.Duration
	AffinityTTL       time.Duration
	DiscoveryInterval time.Duration
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadWorkerConfig reads WorkerConfig from the environment, defaulting
// the worker to port 3960 per spec.md §9 Open Question (a).
func LoadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Name:             getEnv("ZAKURO_WORKER_NAME", ""),
		Type:             getEnv("ZAKURO_WORKER_TYPE", "generic"),
		Host:             getEnv("ZAKURO_HOST", "0.0.0.0"),
		Port:             getEnvInt("ZAKURO_PORT", 3960),
		CPUPrice:         getEnvFloat("ZAKURO_CPU_PRICE", 0.0001),
		MemPrice:         getEnvFloat("ZAKURO_MEMORY_PRICE", 0.00001),
		GPUPrice:         getEnvFloat("ZAKURO_GPU_PRICE", 0.001),
		MinCharge:        getEnvFloat("ZAKURO_MIN_CHARGE", 0.0001),
		Tags:             getEnvList("ZAKURO_WORKER_TAGS"),
		GPUsTotal:        getEnvInt("ZAKURO_GPU_COUNT", 0),
		MemoryTotalBytes: getEnvInt64("ZAKURO_MEMORY_TOTAL", 0),
		PoolSize:         getEnvInt("ZAKURO_POOL_SIZE", 0),
	}
}

// LoadBrokerConfig reads BrokerConfig from the environment, defaulting
// the broker to port 9000 per spec.md §6's zc:// default.
func LoadBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:              getEnv("ZAKURO_HOST", "0.0.0.0"),
		Port:              getEnvInt("ZAKURO_PORT", 9000),
		Peers:             getEnvList("ZAKURO_PEERS"),
		P2P:               getEnvBool("ZAKURO_P2P", true),
		DataDir:           getEnv("ZAKURO_DATA_DIR", "/var/lib/zakuro/broker"),
		LocalMode:         getEnvBool("ZAKURO_LOCAL_MODE", false),
		ReservationTTL:    time.Duration(getEnvInt("ZAKURO_RESERVATION_TTL_SECONDS", 300)) * time.Second,
		AffinityTTL:       time.Duration(getEnvInt("ZAKURO_INSTANCE_TTL_SECONDS", 1800)) * time.Second,
		DiscoveryInterval: time.Duration(getEnvInt("ZAKURO_DISCOVERY_INTERVAL_SECONDS", 5)) * time.Second,
	}
}

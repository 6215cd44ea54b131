package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadWorkerConfigDefaults(t *testing.T) {
	cfg := LoadWorkerConfig()
	assert.Equal(t, 3960, cfg.Port, "worker must default to port 3960 per the thread-pool Open Question resolution")
	assert.Equal(t, "generic", cfg.Type)
}

func TestLoadBrokerConfigDefaults(t *testing.T) {
	cfg := LoadBrokerConfig()
	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.LocalMode)
}

func TestLoadWorkerConfigReadsTagsList(t *testing.T) {
	t.Setenv("ZAKURO_WORKER_TAGS", "gpu, fast,  ")
	cfg := LoadWorkerConfig()
	assert.Equal(t, []string{"gpu", "fast"}, cfg.Tags)
}

func TestLoadBrokerConfigReadsPeerList(t *testing.T) {
	t.Setenv("ZAKURO_PEERS", "10.0.0.1:9000,10.0.0.2:9000")
	cfg := LoadBrokerConfig()
	assert.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, cfg.Peers)
}

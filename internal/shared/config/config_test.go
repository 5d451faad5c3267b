package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "rpc-proxy")

	cfg := Load()
	assert.Equal(t, "devnet", cfg.Network)
	assert.False(t, cfg.IsMainnet())
	assert.Equal(t, "8090", cfg.HTTPPort)
	assert.Equal(t, "9190", cfg.MetricsPort)
	assert.Equal(t, 2, cfg.RPCMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RPCRetryDelay)
	assert.Equal(t, "none", cfg.OutboxStore)
	assert.Equal(t, "bet_save_failed", cfg.TopicBetSaveFailed)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "battle-client")
	t.Setenv("SOLANA_NETWORK", "mainnet-beta")
	t.Setenv("RPC_MAX_RETRIES", "5")
	t.Setenv("RPC_RETRY_DELAY", "1s")
	t.Setenv("RECONCILE_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("SOLANA_KEYPAIR", "/tmp/key.json")

	cfg := Load()
	assert.True(t, cfg.IsMainnet())
	assert.Equal(t, 5, cfg.RPCMaxRetries)
	assert.Equal(t, time.Second, cfg.RPCRetryDelay)
	assert.Equal(t, 10, cfg.ReconcileMaxTries)
	assert.Equal(t, "/tmp/key.json", cfg.KeypairPath)
	assert.Empty(t, cfg.HTTPPort)
}

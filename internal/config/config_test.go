package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	// Defaults lack a factory address, which chain modes require.
	cfg.Chain.FactoryAddress = "0x00000000000000000000000000000000000000aa"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateChainRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "index"
	cfg.Chain.RPCURL = ""
	cfg.Chain.FactoryAddress = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "factory_address")
}

func TestValidateServeModeSkipsChain(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Chain.RPCURL = ""
	cfg.Chain.FactoryAddress = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateResolverWindow(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Resolver.Enabled = true
	cfg.Resolver.WindowMinutes = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_minutes")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COURTSIDE_CHAIN_RPC_URL", "https://rpc.example.org")
	t.Setenv("COURTSIDE_INDEXER_BATCH_SIZE", "500")
	t.Setenv("COURTSIDE_RESOLVER_INTERVAL", "30s")
	t.Setenv("COURTSIDE_RESOLVER_ENABLED", "true")
	t.Setenv("COURTSIDE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "https://rpc.example.org", cfg.Chain.RPCURL)
	assert.Equal(t, uint64(500), cfg.Indexer.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Resolver.Interval.Duration)
	assert.True(t, cfg.Resolver.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("5m")))
	assert.Equal(t, 5*time.Minute, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(out))
}

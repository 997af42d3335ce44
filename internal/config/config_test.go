package config

import (
	"testing"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_givenNoOverrides_thenDefaults(t *testing.T) {
	cfg, err := Load(nil, "test")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.HttpHost)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.Server.AllowedOrigins)
	assert.Zero(t, cfg.Server.WebhookRateLimit)
	assert.False(t, cfg.Server.WebhookTrustForwardedFor)
	assert.Equal(t, 10*time.Minute, cfg.Server.WebhookLimiterIdleTTL)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, BackendPostgres, cfg.Chart.Backend)
	assert.Equal(t, 30*time.Second, cfg.Settlement.Delay)
	assert.Equal(t, 10*time.Second, cfg.Settlement.StoreTimeout)
	assert.True(t, cfg.Settlement.RequeueStuck)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "txnrelay", cfg.Metrics.Namespace)
}

func TestLoad_givenEnvironment_thenOverrides(t *testing.T) {
	t.Setenv("TXNRELAY_SETTLEMENT_DELAY", "5s")
	t.Setenv("TXNRELAY_STORE_BACKEND", "pebble")
	t.Setenv("TXNRELAY_CHART_BACKEND", "redis")

	cfg, err := Load(nil, "test")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Settlement.Delay)
	assert.Equal(t, BackendPebble, cfg.Store.Backend)
	assert.Equal(t, BackendRedis, cfg.Chart.Backend)
}

func TestLoad_givenFlags_thenOverrides(t *testing.T) {
	cfg, err := Load([]string{"--store-backend=pebble", "--chart-backend=pebble"}, "test")
	require.NoError(t, err)
	assert.Equal(t, BackendPebble, cfg.Store.Backend)
	assert.Equal(t, BackendPebble, cfg.Chart.Backend)
}

func TestLoad_givenHelpFlag_thenErrHelpWanted(t *testing.T) {
	cfg, err := Load([]string{"--help"}, "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, conf.ErrHelpWanted))

	usage, err := cfg.Usage()
	require.NoError(t, err)
	assert.Contains(t, usage, "TXNRELAY")
}

func TestValidate(t *testing.T) {
	testData := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(cfg *Config) {}},
		{name: "unknown store backend", mutate: func(cfg *Config) { cfg.Store.Backend = "mysql" }, wantErr: true},
		{name: "unknown chart backend", mutate: func(cfg *Config) { cfg.Chart.Backend = "memcached" }, wantErr: true},
		{name: "chart on other embedded backend", mutate: func(cfg *Config) { cfg.Chart.Backend = BackendPebble }, wantErr: true},
		{name: "redis charts with pebble store", mutate: func(cfg *Config) {
			cfg.Store.Backend = BackendPebble
			cfg.Chart.Backend = BackendRedis
		}},
		{name: "negative rate", mutate: func(cfg *Config) { cfg.Server.WebhookRateLimit = -1 }, wantErr: true},
		{name: "rate without burst", mutate: func(cfg *Config) {
			cfg.Server.WebhookRateLimit = 10
			cfg.Server.WebhookBurst = 0
		}, wantErr: true},
		{name: "negative limiter idle ttl", mutate: func(cfg *Config) {
			cfg.Server.WebhookRateLimit = 10
			cfg.Server.WebhookLimiterIdleTTL = -time.Second
		}, wantErr: true},
		{name: "rate limiting disabled", mutate: func(cfg *Config) {
			cfg.Server.WebhookRateLimit = 0
			cfg.Server.WebhookBurst = 0
		}},
		{name: "negative delay", mutate: func(cfg *Config) { cfg.Settlement.Delay = -time.Second }, wantErr: true},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			cfg, err := Load(nil, "test")
			require.NoError(t, err)

			testRun.mutate(cfg)
			err = cfg.Validate()
			if testRun.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

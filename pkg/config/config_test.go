package config

import (
	"os"
	"strings"
	"testing"
)

func clearEnv() {
	for _, k := range []string{
		"SOLANA_RPC_URL", "GEYSER_URL", "RPC_POLL_INTERVAL_MS", "SCOUT_INTERVAL_MS",
		"MONITOR_INTERVAL_MS", "DEFAULT_COMPUTE_UNIT_LIMIT", "QUIC_KEEP_ALIVE_SECS",
		"QUIC_IDLE_TIMEOUT_SECS", "GEYSER_RECONNECT_DELAY_MS", "GEYSER_MAX_RECONNECT_DELAY_MS",
	} {
		os.Unsetenv(k)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv()
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.RPCURL != "https://api.mainnet-beta.solana.com" {
		t.Errorf("unexpected rpc url: %s", cfg.RPCURL)
	}
	if cfg.GeyserURL != "" {
		t.Errorf("expected empty geyser url, got %s", cfg.GeyserURL)
	}
	if cfg.RPCPollIntervalMS != 400 {
		t.Errorf("unexpected poll interval: %d", cfg.RPCPollIntervalMS)
	}
	if cfg.DefaultComputeUnitLimit != 200_000 {
		t.Errorf("unexpected compute unit limit: %d", cfg.DefaultComputeUnitLimit)
	}
}

func TestFromEnvIntervalTooLow(t *testing.T) {
	clearEnv()
	os.Setenv("RPC_POLL_INTERVAL_MS", "10")
	defer os.Unsetenv("RPC_POLL_INTERVAL_MS")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.Error(); !strings.Contains(got, "too low") {
		t.Errorf("expected 'too low' in error, got: %s", got)
	}
}

func TestFromEnvKeepAliveExceedsTimeout(t *testing.T) {
	clearEnv()
	os.Setenv("QUIC_KEEP_ALIVE_SECS", "15")
	os.Setenv("QUIC_IDLE_TIMEOUT_SECS", "10")
	defer os.Unsetenv("QUIC_KEEP_ALIVE_SECS")
	defer os.Unsetenv("QUIC_IDLE_TIMEOUT_SECS")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.Error(); !strings.Contains(got, "must be less than") {
		t.Errorf("expected 'must be less than' in error, got: %s", got)
	}
}

func TestFromEnvZeroComputeUnits(t *testing.T) {
	clearEnv()
	os.Setenv("DEFAULT_COMPUTE_UNIT_LIMIT", "0")
	defer os.Unsetenv("DEFAULT_COMPUTE_UNIT_LIMIT")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected validation error")
	}
}

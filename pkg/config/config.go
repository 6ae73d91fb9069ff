// Package config loads and validates scramjet's runtime configuration
// from environment variables, with CLI flags taking precedence over
// env vars and env vars taking precedence over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dotslashapaar/scramjet/pkg/errs"
	"github.com/dotslashapaar/scramjet/pkg/log"
)

const minIntervalMS = 50

// Config holds the process-lifetime tunables validated once at load.
type Config struct {
	RPCURL    string
	GeyserURL string // empty means polling mode

	RPCPollIntervalMS   uint64
	ScoutIntervalMS     uint64
	ScoutLookaheadSlots uint64
	MonitorIntervalMS   uint64

	GeyserReconnectDelayMS    uint64
	GeyserMaxReconnectDelayMS uint64

	QUICKeepAliveSecs   uint64
	QUICIdleTimeoutSecs uint64

	DefaultComputeUnitLimit uint32
	DefaultPriorityFee      uint64

	BlocklistFile        string
	BlocklistURL         string
	BlocklistRefreshSecs uint64
	MetricsAddr          string
}

// FromEnv loads configuration from environment variables and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		RPCURL:    getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		GeyserURL: getEnv("GEYSER_URL", ""),

		RPCPollIntervalMS:   parseEnv("RPC_POLL_INTERVAL_MS", uint64(400)),
		ScoutIntervalMS:     parseEnv("SCOUT_INTERVAL_MS", uint64(1000)),
		ScoutLookaheadSlots: parseEnv("SCOUT_LOOKAHEAD_SLOTS", uint64(10)),
		MonitorIntervalMS:   parseEnv("MONITOR_INTERVAL_MS", uint64(400)),

		GeyserReconnectDelayMS:    parseEnv("GEYSER_RECONNECT_DELAY_MS", uint64(1000)),
		GeyserMaxReconnectDelayMS: parseEnv("GEYSER_MAX_RECONNECT_DELAY_MS", uint64(10000)),

		QUICKeepAliveSecs:   parseEnv("QUIC_KEEP_ALIVE_SECS", uint64(5)),
		QUICIdleTimeoutSecs: parseEnv("QUIC_IDLE_TIMEOUT_SECS", uint64(10)),

		DefaultComputeUnitLimit: uint32(parseEnv("DEFAULT_COMPUTE_UNIT_LIMIT", uint64(200_000))),
		DefaultPriorityFee:      parseEnv("DEFAULT_PRIORITY_FEE", uint64(100_000)),

		BlocklistFile:        getEnv("SCRAMJET_BLOCKLIST_FILE", "./blocklist.txt"),
		BlocklistURL:         getEnv("SCRAMJET_BLOCKLIST_URL", ""),
		BlocklistRefreshSecs: parseEnv("SCRAMJET_BLOCKLIST_REFRESH_SECS", uint64(300)),
		MetricsAddr:          getEnv("SCRAMJET_METRICS_ADDR", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, &errs.ConfigError{Cause: err}
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RPCPollIntervalMS < minIntervalMS {
		return fmt.Errorf("RPC_POLL_INTERVAL_MS=%d is too low (min %dms)", c.RPCPollIntervalMS, minIntervalMS)
	}
	if c.ScoutIntervalMS < minIntervalMS {
		return fmt.Errorf("SCOUT_INTERVAL_MS=%d is too low (min %dms)", c.ScoutIntervalMS, minIntervalMS)
	}
	if c.MonitorIntervalMS < minIntervalMS {
		return fmt.Errorf("MONITOR_INTERVAL_MS=%d is too low (min %dms)", c.MonitorIntervalMS, minIntervalMS)
	}
	if c.DefaultComputeUnitLimit == 0 {
		return fmt.Errorf("DEFAULT_COMPUTE_UNIT_LIMIT=0 means all transactions will fail")
	}
	if c.QUICIdleTimeoutSecs == 0 {
		return fmt.Errorf("QUIC_IDLE_TIMEOUT_SECS=0 means connections disconnect immediately")
	}
	if c.QUICKeepAliveSecs >= c.QUICIdleTimeoutSecs {
		return fmt.Errorf("QUIC_KEEP_ALIVE_SECS=%d must be less than QUIC_IDLE_TIMEOUT_SECS=%d", c.QUICKeepAliveSecs, c.QUICIdleTimeoutSecs)
	}
	if c.GeyserMaxReconnectDelayMS < c.GeyserReconnectDelayMS {
		return fmt.Errorf("GEYSER_MAX_RECONNECT_DELAY_MS=%d must be >= GEYSER_RECONNECT_DELAY_MS=%d", c.GeyserMaxReconnectDelayMS, c.GeyserReconnectDelayMS)
	}
	return nil
}

func (c *Config) RPCPollInterval() time.Duration   { return time.Duration(c.RPCPollIntervalMS) * time.Millisecond }
func (c *Config) ScoutInterval() time.Duration     { return time.Duration(c.ScoutIntervalMS) * time.Millisecond }
func (c *Config) MonitorInterval() time.Duration   { return time.Duration(c.MonitorIntervalMS) * time.Millisecond }
func (c *Config) GeyserReconnectDelay() time.Duration {
	return time.Duration(c.GeyserReconnectDelayMS) * time.Millisecond
}
func (c *Config) GeyserMaxReconnectDelay() time.Duration {
	return time.Duration(c.GeyserMaxReconnectDelayMS) * time.Millisecond
}
func (c *Config) QUICKeepAlive() time.Duration   { return time.Duration(c.QUICKeepAliveSecs) * time.Second }
func (c *Config) QUICIdleTimeout() time.Duration { return time.Duration(c.QUICIdleTimeoutSecs) * time.Second }
func (c *Config) BlocklistRefreshInterval() time.Duration {
	return time.Duration(c.BlocklistRefreshSecs) * time.Second
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func parseEnv(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Logger.Warn().Str("key", key).Str("value", v).Msg("invalid env value, using default")
		return def
	}
	return parsed
}


package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/dotslashapaar/scramjet/pkg/blocklist"
	"github.com/dotslashapaar/scramjet/pkg/cartographer"
	"github.com/dotslashapaar/scramjet/pkg/clock"
	"github.com/dotslashapaar/scramjet/pkg/config"
	"github.com/dotslashapaar/scramjet/pkg/identity"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
	"github.com/dotslashapaar/scramjet/pkg/rpcclient"
	"github.com/dotslashapaar/scramjet/pkg/scout"
	"github.com/dotslashapaar/scramjet/pkg/transport"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scramjet",
	Short: "A client-side Solana transaction submission engine",
	Long: `Scramjet maintains a live slot-to-leader map, tracks the current
slot via a streaming or polling clock source, pre-warms QUIC sessions
to upcoming leaders, and fires transactions directly at a validator's
TPU over QUIC.`,
}

func init() {
	rootCmd.PersistentFlags().String("rpc", "", "JSON-RPC endpoint (overrides SOLANA_RPC_URL)")
	rootCmd.PersistentFlags().String("geyser", "", "Streaming slot feed endpoint (overrides GEYSER_URL)")
	rootCmd.PersistentFlags().String("keypair", "", "Path to an on-disk keypair file (default ~/.config/solana/id.json)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve Prometheus /metrics on (disabled if empty)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(fireCmd)
	rootCmd.AddCommand(spamCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOutput,
	})
}

// bootstrap holds everything every subcommand needs after startup.
type bootstrap struct {
	cfg          *config.Config
	id           *identity.Key
	rpc          *rpcclient.Client
	cartographer *cartographer.Cartographer
	engine       *transport.Engine
	scout        *scout.Scout
	cancelClock  context.CancelFunc
}

// runBootstrap performs the shared startup sequence: load config,
// load identity, resolve the initial topology and leader schedule,
// start the clock source, start the QUIC engine, and start the scout.
// It fails fast (nonzero exit) on any error before the first topology
// and schedule fetch succeed, per spec §6's exit code contract.
func runBootstrap(cmd *cobra.Command) (*bootstrap, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if rpc, _ := cmd.Flags().GetString("rpc"); rpc != "" {
		cfg.RPCURL = rpc
	}
	if geyser, _ := cmd.Flags().GetString("geyser"); geyser != "" {
		cfg.GeyserURL = geyser
	}
	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	keypairPath, _ := cmd.Flags().GetString("keypair")
	if keypairPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default keypair path: %w", err)
		}
		keypairPath = filepath.Join(home, ".config", "solana", "id.json")
	}

	id, err := identity.Load(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}
	log.Logger.Info().Str("identity", base58.Encode(id.Public)).Msg("identity loaded")

	rpc := rpcclient.New(cfg.RPCURL)
	bl := blocklist.New(cfg.BlocklistFile, cfg.BlocklistURL)
	cg := cartographer.New(rpc, bl)

	ctx := context.Background()

	log.Logger.Info().Str("rpc", cfg.RPCURL).Msg("refreshing initial topology")
	if err := cg.RefreshTopology(ctx); err != nil {
		metrics.SetCartographerReady(false, err.Error())
		return nil, fmt.Errorf("initial topology refresh: %w", err)
	}
	if err := cg.UpdateSchedule(ctx); err != nil {
		metrics.SetCartographerReady(false, err.Error())
		return nil, fmt.Errorf("initial schedule refresh: %w", err)
	}
	metrics.SetCartographerReady(true, "")

	stop := make(chan struct{})
	go bl.SpawnUpdater(cfg.BlocklistRefreshInterval(), stop)

	clockCtx, cancelClock := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	if cfg.GeyserURL != "" {
		log.Logger.Info().Str("geyser", cfg.GeyserURL).Msg("mode: streaming (geyser)")
		source, err := clock.NewStreamSource(cfg.GeyserURL, cg)
		if err != nil {
			cancelClock()
			return nil, fmt.Errorf("configuring geyser stream source: %w", err)
		}
		go source.Run(clockCtx, ready, cfg.GeyserReconnectDelay(), cfg.GeyserMaxReconnectDelay())
	} else {
		log.Logger.Info().Msg("mode: polling (rpc)")
		source := clock.NewPollSource(cg, cfg.RPCPollInterval())
		go source.Run(clockCtx, ready)
	}

	select {
	case err := <-ready:
		if err != nil {
			metrics.SetClockReady(false, err.Error())
			log.Logger.Warn().Err(err).Msg("initial clock source connection failed, will keep retrying in background")
		} else {
			metrics.SetClockReady(true, "")
		}
	case <-time.After(10 * time.Second):
		metrics.SetClockReady(false, "timed out waiting for first slot observation")
		log.Logger.Warn().Msg("timed out waiting for clock source readiness, continuing anyway")
	}

	engine, err := transport.New(id, cfg)
	if err != nil {
		metrics.SetTransportReady(false, err.Error())
		cancelClock()
		return nil, fmt.Errorf("starting QUIC engine: %w", err)
	}
	metrics.SetTransportReady(true, "")

	sc := scout.New(cg, engine, cfg.ScoutInterval(), cfg.ScoutLookaheadSlots)
	go sc.Run(clockCtx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
	}

	return &bootstrap{
		cfg:          cfg,
		id:           id,
		rpc:          rpc,
		cartographer: cg,
		engine:       engine,
		scout:        sc,
		cancelClock:  cancelClock,
	}, nil
}

func (b *bootstrap) shutdown() {
	b.cancelClock()
	b.engine.Close()
}

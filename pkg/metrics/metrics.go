package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Slot clock metrics
	KnownSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scramjet_known_slot",
			Help: "Most recently observed slot",
		},
	)

	KnownEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scramjet_known_epoch",
			Help: "Most recently observed epoch",
		},
	)

	SlotSourceConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scramjet_slot_source_connected",
			Help: "Whether the active slot source (streaming or polling) is connected",
		},
		[]string{"source"},
	)

	// Cartographer / routing metrics
	LeaderLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_leader_lookup_total",
			Help: "Total leader resolution attempts by outcome",
		},
		[]string{"outcome"}, // hit, miss, blocked
	)

	TopologyNodesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scramjet_topology_nodes_known",
			Help: "Number of validator QUIC ingress addresses currently known",
		},
	)

	// Blocklist metrics
	BlocklistSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scramjet_blocklist_size",
			Help: "Number of validators currently blocked",
		},
	)

	// Transport metrics
	SessionCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scramjet_session_cache_size",
			Help: "Number of cached QUIC connections",
		},
	)

	HandshakeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scramjet_handshake_duration_seconds",
			Help:    "Time taken to establish a new QUIC connection",
			Buckets: prometheus.DefBuckets,
		},
	)

	SubstreamSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scramjet_substream_send_duration_seconds",
			Help:    "Time taken to open a substream and send a transaction payload",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_transactions_sent_total",
			Help: "Total number of transaction send attempts by outcome",
		},
		[]string{"outcome"}, // ok, error
	)

	// Scout metrics
	ScoutPrewarmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scramjet_scout_prewarmed_total",
			Help: "Total number of connections pre-warmed by the scout",
		},
	)
)

func init() {
	prometheus.MustRegister(KnownSlot)
	prometheus.MustRegister(KnownEpoch)
	prometheus.MustRegister(SlotSourceConnected)
	prometheus.MustRegister(LeaderLookupTotal)
	prometheus.MustRegister(TopologyNodesKnown)
	prometheus.MustRegister(BlocklistSize)
	prometheus.MustRegister(SessionCacheSize)
	prometheus.MustRegister(HandshakeDuration)
	prometheus.MustRegister(SubstreamSendDuration)
	prometheus.MustRegister(TransactionsSentTotal)
	prometheus.MustRegister(ScoutPrewarmedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHandshakeSince records a QUIC handshake's duration, timed
// from start, to the handshake latency histogram.
func ObserveHandshakeSince(start time.Time) {
	HandshakeDuration.Observe(time.Since(start).Seconds())
}

// ObserveSubstreamSendSince records a substream open+write+close's
// duration, timed from start, to the substream send latency histogram.
func ObserveSubstreamSendSince(start time.Time) {
	SubstreamSendDuration.Observe(time.Since(start).Seconds())
}

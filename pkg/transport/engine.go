// Package transport is scramjet's QUIC sending engine: one UDP
// endpoint, a cache of live connections to validator TPU QUIC
// ingress ports, and a one-shot unidirectional stream per transaction
// (see spec §4.3 and §5).
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"hash/fnv"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dotslashapaar/scramjet/pkg/config"
	"github.com/dotslashapaar/scramjet/pkg/errs"
	"github.com/dotslashapaar/scramjet/pkg/identity"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
	"github.com/dotslashapaar/scramjet/pkg/types"
)

// serverName is the SNI / certificate subject the validator's QUIC
// listener expects to see during the handshake.
const serverName = "solana"

const alpnProtocol = "solana-tpu"

const shardCount = 16

// Engine manages QUIC connections to validator TPU ingress ports. A
// connection, once established, is reused for every subsequent
// transaction sent to the same target: each send opens a fresh
// unidirectional stream over the cached connection rather than
// re-handshaking.
type Engine struct {
	transport *quic.Transport
	tlsConfig *tls.Config
	quicConfig *quic.Config

	shards [shardCount]*shard
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]*quic.Conn
}

// New binds a UDP socket and prepares the QUIC client transport. The
// TLS config is built from the given identity key: an ephemeral
// self-signed client certificate, ALPN "solana-tpu", and server
// verification disabled per the protocol's trust model (spec §9).
func New(id *identity.Key, cfg *config.Config) (*Engine, error) {
	cert, err := id.ClientCertificate()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		Certificates:          []tls.Certificate{cert},
		NextProtos:            []string{alpnProtocol},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error { return nil },
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, &errs.TransportError{Cause: fmt.Errorf("binding UDP socket: %w", err)}
	}

	quicConfig := &quic.Config{
		KeepAlivePeriod: cfg.QUICKeepAlive(),
		MaxIdleTimeout:  cfg.QUICIdleTimeout(),
	}

	e := &Engine{
		transport:  &quic.Transport{Conn: conn},
		tlsConfig:  tlsConfig,
		quicConfig: quicConfig,
	}
	for i := range e.shards {
		e.shards[i] = &shard{conns: make(map[string]*quic.Conn)}
	}
	return e, nil
}

// SendTransaction sends payload to target over a unidirectional QUIC
// stream, reusing a cached connection when one is already live.
func (e *Engine) SendTransaction(ctx context.Context, target types.IngressAddress, payload []byte) error {
	sendStart := time.Now()
	conn, err := e.getConnection(ctx, target)
	if err != nil {
		metrics.TransactionsSentTotal.WithLabelValues("error").Inc()
		return err
	}

	stream, err := conn.OpenUniStream()
	if err != nil {
		metrics.TransactionsSentTotal.WithLabelValues("error").Inc()
		return &errs.StreamError{Cause: fmt.Errorf("opening stream to %s: %w", target, err)}
	}

	if _, err := stream.Write(payload); err != nil {
		metrics.TransactionsSentTotal.WithLabelValues("error").Inc()
		return &errs.StreamError{Cause: fmt.Errorf("writing to %s: %w", target, err)}
	}
	if err := stream.Close(); err != nil {
		metrics.TransactionsSentTotal.WithLabelValues("error").Inc()
		return &errs.StreamError{Cause: fmt.Errorf("finishing stream to %s: %w", target, err)}
	}

	metrics.TransactionsSentTotal.WithLabelValues("ok").Inc()
	metrics.ObserveSubstreamSendSince(sendStart)
	return nil
}

// GetConnectionHandle returns a live connection to target, for callers
// that want to open many streams over the same handle themselves. The
// scout calls it to pre-warm upcoming leaders, and the spam command
// calls it once to establish the session before sending its copies.
func (e *Engine) GetConnectionHandle(ctx context.Context, target types.IngressAddress) (*quic.Conn, error) {
	return e.getConnection(ctx, target)
}

func (e *Engine) getConnection(ctx context.Context, target types.IngressAddress) (*quic.Conn, error) {
	key := target.String()
	sh := e.shardFor(key)

	sh.mu.RLock()
	conn, ok := sh.conns[key]
	sh.mu.RUnlock()
	if ok {
		select {
		case <-conn.Context().Done():
			// stale; fall through to remove and reconnect
		default:
			return conn, nil
		}
	}

	sh.mu.Lock()
	delete(sh.conns, key)
	sh.mu.Unlock()

	log.Logger.Info().Str("target", key).Msg("handshake: connecting to leader")
	handshakeStart := time.Now()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	newConn, err := e.transport.Dial(dialCtx, target.UDPAddr(), e.tlsConfig, e.quicConfig)
	if err != nil {
		return nil, &errs.TransportError{Target: key, Cause: err}
	}
	metrics.ObserveHandshakeSince(handshakeStart)

	sh.mu.Lock()
	sh.conns[key] = newConn
	sh.mu.Unlock()
	metrics.SessionCacheSize.Set(float64(e.cacheSize()))

	log.Logger.Debug().Str("target", key).Msg("connection cached")
	return newConn, nil
}

func (e *Engine) cacheSize() int {
	total := 0
	for _, sh := range e.shards {
		sh.mu.RLock()
		total += len(sh.conns)
		sh.mu.RUnlock()
	}
	return total
}

func (e *Engine) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return e.shards[h.Sum32()%shardCount]
}

// Close releases the underlying UDP socket.
func (e *Engine) Close() error {
	return e.transport.Close()
}

package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dotslashapaar/scramjet/pkg/config"
	"github.com/dotslashapaar/scramjet/pkg/identity"
	"github.com/dotslashapaar/scramjet/pkg/types"
)

func testIdentity(t *testing.T) *identity.Key {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating identity key: %v", err)
	}
	return &identity.Key{Public: pub, Private: priv}
}

func testServerTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating server key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("generating serial: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "solana"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		t.Fatalf("creating server certificate: %v", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}},
		NextProtos:   []string{alpnProtocol},
	}
}

func TestConnectionReuseMultiplexing(t *testing.T) {
	listener, err := quic.ListenAddr("127.0.0.1:0", testServerTLSConfig(t), &quic.Config{})
	if err != nil {
		t.Fatalf("starting test server: %v", err)
	}
	defer listener.Close()

	received := make(chan struct{}, 10)
	go func() {
		conn, err := listener.Accept(context.Background())
		if err != nil {
			return
		}
		for {
			stream, err := conn.AcceptUniStream(context.Background())
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 1024)
				stream.Read(buf)
				received <- struct{}{}
			}()
		}
	}()

	udpAddr := listener.Addr().(*net.UDPAddr)
	target := types.IngressAddress{IP: udpAddr.IP, Port: uint16(udpAddr.Port)}

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	engine, err := New(testIdentity(t), cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	// We don't verify the server's certificate (protocol trust model).
	// New already sets InsecureSkipVerify; it is set again here so the
	// test's reliance on it is explicit.
	engine.tlsConfig.InsecureSkipVerify = true

	handle, err := engine.GetConnectionHandle(context.Background(), target)
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		go func(i byte) {
			stream, err := handle.OpenUniStream()
			if err != nil {
				return
			}
			stream.Write([]byte{i})
			stream.Close()
		}(byte(i))
	}

	count := 0
	timeout := time.After(5 * time.Second)
	for count < 10 {
		select {
		case <-received:
			count++
		case <-timeout:
			t.Fatalf("multiplexing failed: only received %d/10", count)
		}
	}
}

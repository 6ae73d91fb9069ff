// Package identity loads the operator's Ed25519 keypair from disk and
// derives the self-signed client TLS certificate scramjet presents
// during the QUIC handshake (see spec §4.3 and §9).
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/dotslashapaar/scramjet/pkg/errs"
)

// subjectName is the fixed subject name the protocol expects on the
// client certificate.
const subjectName = "solana"

// certValidity is generous because the certificate is regenerated on
// every process start and never persisted.
const certValidity = 24 * time.Hour

// Key is an Ed25519 keypair loaded from a Solana-format on-disk
// keypair file (a JSON array of 64 bytes: 32-byte seed || 32-byte
// public key).
type Key struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Load reads and parses a keypair file at path.
func Load(path string) (*Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IdentityError{Cause: fmt.Errorf("reading keypair file %q: %w", path, err)}
	}

	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, &errs.IdentityError{Cause: fmt.Errorf("parsing keypair file %q: %w", path, err)}
	}
	if len(bytes) != ed25519.PrivateKeySize {
		return nil, &errs.IdentityError{Cause: fmt.Errorf("keypair file %q has %d bytes, want %d", path, len(bytes), ed25519.PrivateKeySize)}
	}

	priv := ed25519.PrivateKey(bytes)
	return &Key{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}

// ClientCertificate builds the one-off self-signed X.509 certificate
// over the identity's Ed25519 key that scramjet presents as its QUIC
// client certificate. Regenerated each process start, never persisted.
func (k *Key) ClientCertificate() (tls.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, &errs.CertError{Cause: fmt.Errorf("generating serial number: %w", err)}
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: subjectName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(certValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, k.Public, k.Private)
	if err != nil {
		return tls.Certificate{}, &errs.CertError{Cause: fmt.Errorf("creating self-signed certificate: %w", err)}
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  k.Private,
	}, nil
}

// ed25519PKCS8Header is the fixed ASN.1 DER prefix for a PKCS#8-wrapped
// raw Ed25519 private key, as required by certificate generators that
// accept only PKCS#8 keys rather than a raw 32-byte scalar.
var ed25519PKCS8Header = []byte{
	0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20,
}

// PKCS8Seed converts the raw 32-byte Ed25519 seed into PKCS#8 DER form.
// Go's crypto/x509 already accepts ed25519.PrivateKey directly in
// CreateCertificate, so this is only needed when handing the key to a
// generator that insists on a PKCS#8-encoded private key; nothing in
// this repository's certificate path calls it.
func (k *Key) PKCS8Seed() []byte {
	seed := k.Private.Seed()
	out := make([]byte, 0, len(ed25519PKCS8Header)+len(seed))
	out = append(out, ed25519PKCS8Header...)
	out = append(out, seed...)
	return out
}

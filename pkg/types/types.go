// Package types holds the immutable value types shared across
// scramjet's routing and transport components.
package types

import (
	"fmt"
	"net"
	"strconv"

	"github.com/mr-tron/base58"
)

// ValidatorKeyLen is the length in bytes of a validator's identity key.
const ValidatorKeyLen = 32

// ValidatorKey is a validator's 32-byte Ed25519 public key. Two keys
// are equal iff their bytes are equal, which Go's array equality
// already gives us for free.
type ValidatorKey [ValidatorKeyLen]byte

// ParseValidatorKey decodes a base58-encoded validator key.
func ParseValidatorKey(s string) (ValidatorKey, error) {
	var key ValidatorKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return key, fmt.Errorf("invalid base58 key %q: %w", s, err)
	}
	if len(decoded) != ValidatorKeyLen {
		return key, fmt.Errorf("invalid key length for %q: got %d bytes, want %d", s, len(decoded), ValidatorKeyLen)
	}
	copy(key[:], decoded)
	return key, nil
}

// String returns the base58 display form.
func (k ValidatorKey) String() string {
	return base58.Encode(k[:])
}

// IngressAddress is a validator's UDP ingress (TPU) socket.
type IngressAddress struct {
	IP   net.IP
	Port uint16
}

func (a IngressAddress) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// UDPAddr returns the net.UDPAddr form used by the QUIC engine.
func (a IngressAddress) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: int(a.Port)}
}

// ParseIngressAddress parses a "host:port" string into an IngressAddress.
func ParseIngressAddress(s string) (IngressAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return IngressAddress{}, fmt.Errorf("invalid ingress address %q: %w", s, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return IngressAddress{}, fmt.Errorf("invalid ingress host %q", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return IngressAddress{}, fmt.Errorf("invalid ingress port %q: %w", portStr, err)
	}
	return IngressAddress{IP: ip, Port: uint16(port)}, nil
}

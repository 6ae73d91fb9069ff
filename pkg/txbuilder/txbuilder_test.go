package txbuilder

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/dotslashapaar/scramjet/pkg/identity"
)

func testPayer(t *testing.T) *identity.Key {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating payer key: %v", err)
	}
	return &identity.Key{Public: pub, Private: priv}
}

func TestBuildProducesValidSignature(t *testing.T) {
	payer := testPayer(t)
	recipient, err := ParsePubkey("So11111111111111111111111111111111111111112")
	if err != nil {
		t.Fatalf("parsing recipient: %v", err)
	}

	wire, sig, err := Build(BuildParams{
		Payer:                    payer,
		Recipient:                recipient,
		ComputeUnitLimit:         200_000,
		PriorityFeeMicroLamports: 100_000,
		RecentBlockhash:          [32]byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}

	// signatures_count(1) + 64-byte sig + message
	if len(wire) < 1+64 {
		t.Fatalf("wire bytes too short: %d", len(wire))
	}
	if wire[0] != 1 {
		t.Fatalf("expected compact-u16 signature count of 1, got %d", wire[0])
	}

	message := wire[1+64:]
	sigBytes := wire[1 : 1+64]
	if !ed25519.Verify(payer.Public, message, sigBytes) {
		t.Fatal("signature does not verify over the serialized message")
	}

	if message[0] != 1 || message[1] != 0 || message[2] != 2 {
		t.Fatalf("unexpected message header: %v", message[:3])
	}
}

func TestParsePubkeyRejectsWrongLength(t *testing.T) {
	if _, err := ParsePubkey("abc"); err == nil {
		t.Fatal("expected error for undersized pubkey")
	}
}

func TestCompactU16Encoding(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0}},
		{127, []byte{127}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, c := range cases {
		got := appendCompactU16(nil, c.n)
		if len(got) != len(c.want) {
			t.Fatalf("n=%d: got %v, want %v", c.n, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("n=%d: got %v, want %v", c.n, got, c.want)
			}
		}
	}
}

package cartographer

import (
	"testing"

	"github.com/dotslashapaar/scramjet/pkg/blocklist"
	"github.com/dotslashapaar/scramjet/pkg/types"
)

func mustKey(t *testing.T, raw byte) types.ValidatorKey {
	t.Helper()
	var k types.ValidatorKey
	k[0] = raw
	return k
}

func mustAddr(t *testing.T, s string) types.IngressAddress {
	t.Helper()
	addr, err := types.ParseIngressAddress(s)
	if err != nil {
		t.Fatalf("parsing address %q: %v", s, err)
	}
	return addr
}

func newEmptyCartographer() *Cartographer {
	return New(nil, blocklist.New("", ""))
}

func TestAtomicClockBasics(t *testing.T) {
	c := newEmptyCartographer()
	if c.GetKnownSlot() != 0 {
		t.Fatalf("expected slot 0, got %d", c.GetKnownSlot())
	}
	c.UpdateSlot(100)
	if c.GetKnownSlot() != 100 {
		t.Errorf("expected slot 100, got %d", c.GetKnownSlot())
	}
	c.UpdateSlot(101)
	if c.GetKnownSlot() != 101 {
		t.Errorf("expected slot 101, got %d", c.GetKnownSlot())
	}
}

func TestTopologyResolution(t *testing.T) {
	c := newEmptyCartographer()
	pk := mustKey(t, 1)
	addr := mustAddr(t, "127.0.0.1:8000")

	c.schedule[500] = pk
	c.nodeMap[pk] = addr

	got, err := c.GetTarget(500)
	if err != nil {
		t.Fatalf("expected hit for slot 500: %v", err)
	}
	if got.String() != addr.String() {
		t.Errorf("unexpected target: %v", got)
	}

	if _, err := c.GetTarget(501); err == nil {
		t.Error("expected miss for slot 501")
	}
}

func TestShieldBlocksMaliciousValidator(t *testing.T) {
	bl := blocklist.New("", "")
	maliciousPK := mustKey(t, 2)
	goodPK := mustKey(t, 3)
	addr1 := mustAddr(t, "1.1.1.1:80")
	addr2 := mustAddr(t, "2.2.2.2:80")

	c := New(nil, bl)
	c.schedule[100] = maliciousPK
	c.schedule[101] = goodPK
	c.nodeMap[maliciousPK] = addr1
	c.nodeMap[goodPK] = addr2

	bl.SetBlocked(maliciousPK)

	if _, err := c.GetTarget(100); err == nil {
		t.Error("expected blocked validator to yield no target")
	}
	got, err := c.GetTarget(101)
	if err != nil {
		t.Fatalf("expected good validator to resolve: %v", err)
	}
	if got.String() != addr2.String() {
		t.Errorf("unexpected target: %v", got)
	}
}

func TestScoutLookahead(t *testing.T) {
	c := newEmptyCartographer()
	pk1 := mustKey(t, 4)
	pk2 := mustKey(t, 5)
	addr1 := mustAddr(t, "1.1.1.1:80")
	addr2 := mustAddr(t, "2.2.2.2:80")

	c.schedule[101] = pk1
	c.schedule[102] = pk1
	c.schedule[103] = pk2
	c.nodeMap[pk1] = addr1
	c.nodeMap[pk2] = addr2

	targets := c.GetUpcomingLeaders(100, 5)
	if len(targets) != 2 {
		t.Fatalf("expected 2 unique targets, got %d", len(targets))
	}
}

func TestScoutFiltersBlockedValidators(t *testing.T) {
	bl := blocklist.New("", "")
	blockedPK := mustKey(t, 6)
	goodPK := mustKey(t, 7)
	blockedAddr := mustAddr(t, "1.1.1.1:80")
	goodAddr := mustAddr(t, "2.2.2.2:80")

	c := New(nil, bl)
	c.schedule[101] = blockedPK
	c.schedule[102] = goodPK
	c.nodeMap[blockedPK] = blockedAddr
	c.nodeMap[goodPK] = goodAddr

	bl.SetBlocked(blockedPK)

	targets := c.GetUpcomingLeaders(100, 5)
	if len(targets) != 1 {
		t.Fatalf("expected 1 target after filtering, got %d", len(targets))
	}
	if targets[0].String() != goodAddr.String() {
		t.Errorf("unexpected surviving target: %v", targets[0])
	}
}

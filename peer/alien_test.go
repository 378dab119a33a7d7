package peer

import (
	"testing"
	"time"
)

func TestAlienCacheNeedsRefreshInitiallyTrue(t *testing.T) {
	c := NewAlienCache()
	if !c.NeedsRefresh("peerhost") {
		t.Fatal("expected refresh needed before any full stat has happened")
	}
}

func TestAlienCacheReplaceForPeerSetsRefreshTimestamp(t *testing.T) {
	c := NewAlienCache()
	c.ReplaceForPeer("peerhost", []*AlienNode{{Name: "alien1"}})

	if c.NeedsRefresh("peerhost") {
		t.Fatal("expected no refresh needed immediately after a full push")
	}
	if _, ok := c.Get("alien1"); !ok {
		t.Fatal("expected alien1 to be cached")
	}
}

func TestAlienCacheReplaceForPeerEvictsOnlyThatPeer(t *testing.T) {
	c := NewAlienCache()
	c.ReplaceForPeer("peerA", []*AlienNode{{Name: "a1", PeerHost: "peerA"}})
	c.ReplaceForPeer("peerB", []*AlienNode{{Name: "b1", PeerHost: "peerB"}})

	c.ReplaceForPeer("peerA", []*AlienNode{{Name: "a2", PeerHost: "peerA"}})

	if _, ok := c.Get("a1"); ok {
		t.Fatal("expected stale peerA entry evicted")
	}
	if _, ok := c.Get("a2"); !ok {
		t.Fatal("expected new peerA entry present")
	}
	if _, ok := c.Get("b1"); !ok {
		t.Fatal("expected peerB entry untouched by peerA's refresh")
	}
}

func TestAlienCacheGetMiss(t *testing.T) {
	c := NewAlienCache()
	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected miss for uncached alien node")
	}
}

func TestAlienRefreshIntervalElapses(t *testing.T) {
	c := NewAlienCache()
	c.ReplaceForPeer("peerhost", nil)
	// directly verify the rate-limit constant is the documented 2s window
	if AlienRefreshInterval != 2*time.Second {
		t.Fatalf("want 2s refresh interval, got %v", AlienRefreshInterval)
	}
	c.lastFull["peerhost"] = time.Now().Add(-AlienRefreshInterval)
	if !c.NeedsRefresh("peerhost") {
		t.Fatal("expected refresh needed once the interval has elapsed")
	}
}

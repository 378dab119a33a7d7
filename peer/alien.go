package peer

import (
	"sync"
	"time"
)

// AlienRefreshInterval is the rate limit spec.md section 4.5 names:
// "Cache refresh is rate-limited (>= 2 s since last full stat) and
// triggered on cache miss."
const AlienRefreshInterval = 2 * time.Second

// AlienNode is a cached read-only view of a peer's node, spec.md
// section 3's glossary entry "alien node" and section 4.5's
// "alien_node_idx" with the NODE_ALIEN flag.
type AlienNode struct {
	Name       string
	PeerHost   string
	Attrs      map[string]string // flattened svrattrl view, sufficient for local scheduling decisions
	RefreshedAt time.Time
}

// AlienCache is the per-peer cache of alien nodes, rate-limited against
// refetching on every lookup miss.
type AlienCache struct {
	mu         sync.Mutex
	nodes      map[string]*AlienNode
	lastFull   map[string]time.Time // per-peer last full-stat time
}

// NewAlienCache returns an empty cache.
func NewAlienCache() *AlienCache {
	return &AlienCache{
		nodes:    make(map[string]*AlienNode),
		lastFull: make(map[string]time.Time),
	}
}

// Get returns a cached alien node by name.
func (c *AlienCache) Get(name string) (*AlienNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[name]
	return n, ok
}

// NeedsRefresh reports whether a full PS_STAT_RPLY refresh for peerHost
// is due: either no prior refresh happened, or AlienRefreshInterval has
// elapsed since the last one. Callers check this on cache miss, matching
// spec.md section 4.5's "triggered on cache miss" plus rate limit.
func (c *AlienCache) NeedsRefresh(peerHost string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFull[peerHost]
	return !ok || time.Since(last) >= AlienRefreshInterval
}

// ReplaceForPeer installs a fresh PS_STAT_RPLY snapshot for peerHost,
// discarding any stale alien nodes previously cached from that peer.
func (c *AlienCache) ReplaceForPeer(peerHost string, nodes []*AlienNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, n := range c.nodes {
		if n.PeerHost == peerHost {
			delete(c.nodes, name)
		}
	}
	now := time.Now()
	for _, n := range nodes {
		n.RefreshedAt = now
		c.nodes[n.Name] = n
	}
	c.lastFull[peerHost] = now
}

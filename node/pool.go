package node

// Pool models vnode_pool membership, spec.md section 4.2 "Vnode pools": a
// Mom may declare membership in a pool; one Mom per pool is the inventory
// reporter, others echo its topology.
type Pool struct {
	ID       int
	Reporter string // Mom name currently acting as inventory reporter
	Members  []string
}

// PoolTable holds the pools keyed by pool ID, the counterpart of spec.md
// section 4.2 "vnode_pool_mom_list".
type PoolTable struct {
	pools map[int]*Pool
}

// NewPoolTable returns an empty pool table.
func NewPoolTable() *PoolTable {
	return &PoolTable{pools: make(map[int]*Pool)}
}

// Join adds mom to poolID, making it the reporter if the pool is new.
func (pt *PoolTable) Join(poolID int, mom string) *Pool {
	p, ok := pt.pools[poolID]
	if !ok {
		p = &Pool{ID: poolID, Reporter: mom}
		pt.pools[poolID] = p
	}
	for _, m := range p.Members {
		if m == mom {
			return p
		}
	}
	p.Members = append(p.Members, mom)
	return p
}

// Get returns the pool by ID, or nil.
func (pt *PoolTable) Get(poolID int) *Pool { return pt.pools[poolID] }

// ReassignReporter shifts the reporter role away from mom (called on Mom
// down) to another member if one exists, returning the new reporter name
// or "" if the pool is now empty of reporters.
func (pt *PoolTable) ReassignReporter(poolID int, mom string) string {
	p, ok := pt.pools[poolID]
	if !ok || p.Reporter != mom {
		return ""
	}
	for _, m := range p.Members {
		if m != mom {
			p.Reporter = m
			return m
		}
	}
	p.Reporter = ""
	return ""
}

// Leave removes mom from its pool's member list.
func (pt *PoolTable) Leave(poolID int, mom string) {
	p, ok := pt.pools[poolID]
	if !ok {
		return
	}
	for i, m := range p.Members {
		if m == mom {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			break
		}
	}
}

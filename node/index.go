package node

import "fmt"

// ipPort is the key for the by-(ip,port) Mom index, spec.md section 4.2
// "Name lookup: ... by (ipv4, port) -> Mom (hash tree)".
type ipPort struct {
	IP   string
	Port int
}

// Index holds both lookup structures spec.md section 4.2 names: by name
// (an AVL tree in the original, a Go map here — the ordering guarantee an
// AVL tree buys is not load-bearing for lookup, only for ordered
// iteration, which callers get from the linear Order slice instead) and
// by (ip, port) to the owning Mom.
type Index struct {
	byName map[string]*Vnode
	byIPPort map[ipPort]*MomInfo
	alienByName map[string]*Vnode

	Order []string // linear node array order, for svr_totnodes-style reporting
}

// NewIndex returns an empty node index.
func NewIndex() *Index {
	return &Index{
		byName:      make(map[string]*Vnode),
		byIPPort:    make(map[ipPort]*MomInfo),
		alienByName: make(map[string]*Vnode),
	}
}

// Add inserts a vnode into the by-name index and the linear order.
func (idx *Index) Add(n *Vnode) error {
	if _, exists := idx.byName[n.Name]; exists {
		return fmt.Errorf("node: duplicate vnode name %s", n.Name)
	}
	idx.byName[n.Name] = n
	idx.Order = append(idx.Order, n.Name)
	return nil
}

// AddAlien inserts a cached peer-owned vnode into the separate
// alien_node_idx, spec.md section 4.5 "Alien nodes".
func (idx *Index) AddAlien(n *Vnode) {
	n.MarkAlien()
	idx.alienByName[n.Name] = n
}

// Lookup finds a local vnode by name.
func (idx *Index) Lookup(name string) (*Vnode, bool) {
	n, ok := idx.byName[name]
	return n, ok
}

// LookupAlien finds a cached alien vnode by name.
func (idx *Index) LookupAlien(name string) (*Vnode, bool) {
	n, ok := idx.alienByName[name]
	return n, ok
}

// LookupAny checks the local index first, then the alien cache — the
// combined view a resource resolver needs.
func (idx *Index) LookupAny(name string) (*Vnode, bool) {
	if n, ok := idx.byName[name]; ok {
		return n, true
	}
	return idx.LookupAlien(name)
}

// RegisterMom indexes a Mom by every (ip, port) pair it listens on.
func (idx *Index) RegisterMom(m *MomInfo) {
	for _, ip := range m.IPs {
		idx.byIPPort[ipPort{IP: ip, Port: m.Port}] = m
	}
}

// LookupMom finds the Mom listening on (ip, port).
func (idx *Index) LookupMom(ip string, port int) (*MomInfo, bool) {
	m, ok := idx.byIPPort[ipPort{IP: ip, Port: port}]
	return m, ok
}

// Remove deletes a vnode from both the by-name index and the linear
// order, renumbering the order slice to close the hole and reporting the
// new total, matching spec.md section 4.2: "Deleting a vnode removes it
// from both, renumbers the linear node array to close the hole, and
// decrements svr_totnodes."
func (idx *Index) Remove(name string) (total int, ok bool) {
	if _, exists := idx.byName[name]; !exists {
		return len(idx.Order), false
	}
	delete(idx.byName, name)
	for i, n := range idx.Order {
		if n == name {
			idx.Order = append(idx.Order[:i], idx.Order[i+1:]...)
			break
		}
	}
	return len(idx.Order), true
}

// Total reports svr_totnodes: the count of locally owned vnodes.
func (idx *Index) Total() int { return len(idx.Order) }

package node

import (
	"fmt"

	"github.com/vexxhost/batchd/attribute"
)

// SharePolicy mirrors the original's VNS_DFLT_SHARED-style default
// sharing policy for a newly created vnode.
type SharePolicy int

const (
	ShareDefaultShared SharePolicy = iota
	ShareForceExclusive
	ShareDefaultExclusive
	ShareForceShared
	ShareIgnoreExcl
)

// Vnode is the virtual node named in spec.md section 3: name, ordered
// parent-Mom list, state bitfield, attribute array, subnodes, and a
// back-pointer list of active reservations.
type Vnode struct {
	Name      string
	Moms      []string // parent Mom names, in registration order; a vnode may have more than one
	St        State
	Share     SharePolicy
	Attrs     *attribute.Array
	Subnodes  []*Subnode
	NSNFree   int // spec.md section 4.2: "nd_nsnfree counter"
	PoolID    int // vnode_pool membership, 0 = none
	InventoryReporter bool

	ReservationIDs []string // reservations currently holding time on this vnode

	alien bool // true if this is a cached read-only view of a peer's node (spec.md section 4.5 "Alien nodes")
}

// Registry supplies the shared attribute Registry every Vnode's Attrs is
// built against.
var Registry = attribute.NewRegistry("node")

// New builds a vnode in state DOWN|UNKNOWN with the default share policy
// and an empty attribute array built against Registry. It adds no
// baseline resources (arch, mem, ncpus are not created) and links
// nothing into resources_assigned; PreAssignResource does that linking,
// one named resource per call.
func New(name string) *Vnode {
	return &Vnode{
		Name:  name,
		St:    Down | Unknown,
		Share: ShareDefaultShared,
		Attrs: attribute.NewArray(Registry),
	}
}

// PreAssignResource links a resource into resources_assigned at a zero
// value if not already present. Callers invoke this during vnode
// construction for every resource whose Definition carries
// DFlagAnyAssigned or DFlagFullAssigned, per spec.md section 4.2's
// "initialize_pbsnode" rule; this package does not hard-code resource
// names, so the decision of which resources qualify lives with the
// resource Registry that owns those Definitions.
func (n *Vnode) PreAssignResource(name string, zero attribute.Value) {
	assigned := n.Attrs.Get(AttrResourcesAssigned)
	if assigned == nil {
		return
	}
	rl := assigned.Resources()
	if rl == nil {
		rl = attribute.NewResourceList()
		assigned.SetRaw(rl)
	}
	if rl.Get(name) == nil {
		rl.Set(&attribute.Resource{Name: name, Value: zero})
	}
}

const (
	AttrResourcesAvailable = "resources_available"
	AttrResourcesAssigned  = "resources_assigned"
)

// String renders the vnode name, its canonical identifier.
func (n *Vnode) String() string { return n.Name }

// AddMom appends a parent Mom, matching "the parent-Mom array starts at
// capacity 1 and is grown geometrically" — Go slices already grow
// geometrically, so AddMom is a plain append.
func (n *Vnode) AddMom(mom string) {
	for _, m := range n.Moms {
		if m == mom {
			return
		}
	}
	n.Moms = append(n.Moms, mom)
}

// IsNatural reports whether this is vnode[0] of its Mom — the "natural"
// vnode whose deletion tears down the whole Mom record, spec.md section 3
// "Lifecycle ownership".
func (n *Vnode) IsNatural(momNaturalName func(mom string) string) bool {
	if len(n.Moms) == 0 {
		return false
	}
	return momNaturalName(n.Moms[0]) == n.Name
}

// IsAlien reports whether this is a cached view of a peer server's node
// (spec.md section 4.5).
func (n *Vnode) IsAlien() bool { return n.alien }

// MarkAlien flags the vnode as an alien-node cache entry.
func (n *Vnode) MarkAlien() { n.alien = true }

// Validate checks the invariants spec.md section 8 names for a single
// vnode: the live subnode count (in use plus free, ignoring deleted
// subnodes that hold no job) never exceeds ncpus, and nd_nsnfree matches
// the free-subnode count.
func (n *Vnode) Validate() error {
	free := 0
	inuse := 0
	for _, sn := range n.Subnodes {
		if sn.Deleted && !sn.HasJob() {
			continue
		}
		if sn.HasJob() {
			inuse++
		} else {
			free++
		}
	}
	if free != n.NSNFree {
		return fmt.Errorf("node %s: nd_nsnfree=%d but %d subnodes are free", n.Name, n.NSNFree, free)
	}
	ncpus := n.Attrs.Get(AttrResourcesAvailable).Resources().Get("ncpus")
	if ncpus != nil && int64(inuse+free) > ncpus.Value.Long() {
		return fmt.Errorf("node %s: %d live subnodes exceeds ncpus=%d", n.Name, inuse+free, ncpus.Value.Long())
	}
	return nil
}

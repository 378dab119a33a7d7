package node

import "github.com/vexxhost/batchd/attribute"

// Subnode is a virtual CPU within a vnode, one per unit of ncpus, spec.md
// section 3 "subnode" and section 4.2 "ncpus <-> subnodes".
type Subnode struct {
	Index   int
	InUse   uint32 // bitmask; nonzero means at least one job bit is set
	Jobs    []string
	Deleted bool // tail subnode marked for removal, not yet reclaimed while it still holds a job
}

// HasJob reports whether the JOB bit is set, i.e. this subnode is
// currently assigned to a running job.
func (sn *Subnode) HasJob() bool { return sn.InUse != 0 }

// Assign marks the subnode in-use by jobID.
func (sn *Subnode) Assign(jobID string) {
	sn.InUse |= 1
	sn.Jobs = append(sn.Jobs, jobID)
}

// Release removes jobID from the subnode, clearing the JOB bit if no
// jobs remain.
func (sn *Subnode) Release(jobID string) {
	for i, j := range sn.Jobs {
		if j == jobID {
			sn.Jobs = append(sn.Jobs[:i], sn.Jobs[i+1:]...)
			break
		}
	}
	if len(sn.Jobs) == 0 {
		sn.InUse = 0
	}
}

// ResizeSubnodes grows or shrinks n.Subnodes to match a new ncpus value,
// spec.md section 4.2: "grow by appending, shrink by marking the tail
// subnode DELETED (not reclaimed immediately if it holds a running
// job)". NSNFree is recomputed to stay coherent with subnode JOB bits, as
// spec.md section 4.2 requires.
func (n *Vnode) ResizeSubnodes(ncpus int) {
	cur := len(n.Subnodes)
	switch {
	case ncpus > cur:
		for i := cur; i < ncpus; i++ {
			n.Subnodes = append(n.Subnodes, &Subnode{Index: i})
		}
	case ncpus < cur:
		for i := ncpus; i < cur; i++ {
			n.Subnodes[i].Deleted = true
		}
	}
	n.recomputeNSNFree()
}

// reclaimDeleted drops subnodes marked Deleted that no longer hold a job,
// called after a job obits and frees its subnode assignment.
func (n *Vnode) reclaimDeleted() {
	live := n.Subnodes[:0]
	for _, sn := range n.Subnodes {
		if sn.Deleted && !sn.HasJob() {
			continue
		}
		live = append(live, sn)
	}
	n.Subnodes = live
	n.recomputeNSNFree()
}

func (n *Vnode) recomputeNSNFree() {
	free := 0
	inuse := 0
	for _, sn := range n.Subnodes {
		if sn.HasJob() {
			inuse++
		} else if !sn.Deleted {
			free++
		}
	}
	n.NSNFree = free
	n.setAssignedNcpus(int64(inuse))
}

// setAssignedNcpus mirrors the live in-use subnode count into
// resources_assigned.ncpus, the same direct ResourceList write
// mirrorIndirectIntoAssigned uses in indirect.go, keeping the attribute a
// pure derived value of subnode state rather than an independently
// tracked counter. Satisfies spec.md section 8 invariant 1:
// resources_assigned reflects exactly the jobs currently holding
// subnodes on this vnode.
func (n *Vnode) setAssignedNcpus(v int64) {
	if n.Attrs == nil {
		return
	}
	assigned := n.Attrs.Get(AttrResourcesAssigned)
	if assigned == nil {
		return
	}
	rl := assigned.Resources()
	if rl == nil {
		rl = attribute.NewResourceList()
		assigned.SetRaw(rl)
	}
	r := rl.Get("ncpus")
	if r == nil {
		r = &attribute.Resource{Name: "ncpus"}
		rl.Set(r)
	}
	r.Value.SetRaw(v)
	r.Value.Flags |= attribute.FlagSet
	r.Value.InvalidateCache()
}

// ReleaseJob frees jobID from whichever subnodes hold it and reclaims any
// now-empty deleted subnodes.
func (n *Vnode) ReleaseJob(jobID string) {
	for _, sn := range n.Subnodes {
		sn.Release(jobID)
	}
	n.reclaimDeleted()
}

// AssignJob claims count free subnodes for jobID, returning an error via
// the bool result if insufficient subnodes are free.
func (n *Vnode) AssignJob(jobID string, count int) bool {
	var free []*Subnode
	for _, sn := range n.Subnodes {
		if !sn.HasJob() && !sn.Deleted {
			free = append(free, sn)
			if len(free) == count {
				break
			}
		}
	}
	if len(free) < count {
		return false
	}
	for _, sn := range free {
		sn.Assign(jobID)
	}
	n.recomputeNSNFree()
	return true
}

package node

import (
	"fmt"
	"strings"

	"github.com/vexxhost/batchd/attribute"
	"github.com/vexxhost/batchd/batcherr"
)

// ConsumableFlags is the pair of Definition flags (ANASSN|FNASSN) whose
// presence means a resource's INDIRECT bit must be mirrored into
// resources_assigned, spec.md section 4.2 "Commit pass". SetIndirect
// looks the resource's Definition up in Registry by resource name; a
// resource with no Definition there is not mirrored.
const ConsumableFlags = attribute.DFlagAnyAssigned | attribute.DFlagFullAssigned

// Lookup resolves a vnode by name; the entity store supplies this so the
// node package does not own global vnode indexing logic directly (that
// lives in index.go, wired in by the caller that owns the full Index).
type Lookup func(name string) (*Vnode, bool)

// recoveryFlag reports whether the server is replaying saved state, which
// relaxes the "target vnode must already exist" validation rule per
// spec.md section 4.2 validation-pass clause (b).
type recoveryFlag func() bool

// SetIndirect runs the two-pass validate/commit algorithm of spec.md
// section 4.2 for setting resource `name` on vnode src to indirect,
// pointing at vnode `target`. It never partially commits: validation
// failure leaves both vnodes untouched, satisfying spec.md section 7's
// "two-pass validate/commit must not commit on validation failure".
func SetIndirect(lookup Lookup, recovering recoveryFlag, src *Vnode, name, target string) error {
	// --- validation pass ---
	if hasRunningSubnode(src) {
		return batcherr.Validation(batcherr.CodeIndirectHop, fmt.Sprintf("node %s has running subnodes", src.Name), nil)
	}

	tgt, ok := lookup(target)
	if !ok && !recovering() {
		return batcherr.Validation(batcherr.CodeUnknownNode, fmt.Sprintf("indirect target vnode %s does not exist", target), nil)
	}
	if ok {
		targetResc := resourceOn(tgt, name)
		if targetResc == nil {
			return batcherr.Validation(batcherr.CodeUnknownResc, fmt.Sprintf("resource %s not present on target vnode %s", name, target), nil)
		}
		if targetResc.Value.Flags.Has(attribute.FlagIndirect) {
			return batcherr.Validation(batcherr.CodeIndirectHop, fmt.Sprintf("target resource %s.%s is itself indirect", target, name), nil)
		}
		if isAlreadyTarget(src, name) {
			return batcherr.Validation(batcherr.CodeIndirectHop, fmt.Sprintf("vnode %s is already a target for %s, no chaining", src.Name, name), nil)
		}
	}

	// --- commit pass ---
	srcResc := resourceOn(src, name)
	if srcResc == nil {
		return batcherr.Validation(batcherr.CodeUnknownResc, fmt.Sprintf("resource %s not present on %s", name, src.Name), nil)
	}
	srcResc.Value.Flags |= attribute.FlagIndirect
	srcResc.Indirect = "@" + target
	srcResc.Value.InvalidateCache()

	if ok {
		targetResc := resourceOn(tgt, name)
		targetResc.Value.Flags |= attribute.FlagTarget
		targetResc.Value.InvalidateCache()

		if d, found := Registry.Lookup(name); found && d.Flags&ConsumableFlags != 0 {
			mirrorIndirectIntoAssigned(src, tgt, name)
		}
	}
	return nil
}

// ClearIndirect unsets a resource's INDIRECT flag and schedules (via the
// returned bool) a background re-check since clearing TARGET on the
// former target may have been premature if another source still points
// at it — spec.md section 4.2 "schedule a background re-check task that
// walks all vnodes to re-establish any TARGET flags that might have been
// erroneously cleared." The caller owns scheduling that worktask.
func ClearIndirect(lookup Lookup, src *Vnode, name string) (needsRecheck bool, err error) {
	srcResc := resourceOn(src, name)
	if srcResc == nil {
		return false, batcherr.Validation(batcherr.CodeUnknownResc, fmt.Sprintf("resource %s not present on %s", name, src.Name), nil)
	}
	if !srcResc.Value.Flags.Has(attribute.FlagIndirect) {
		return false, nil
	}
	target := strings.TrimPrefix(srcResc.Indirect, "@")
	srcResc.Value.Flags &^= attribute.FlagIndirect
	srcResc.Indirect = ""
	srcResc.Value.InvalidateCache()

	if tgt, ok := lookup(target); ok {
		if targetResc := resourceOn(tgt, name); targetResc != nil {
			targetResc.Value.Flags &^= attribute.FlagTarget
			targetResc.Value.InvalidateCache()
		}
	}
	return true, nil
}

// RecheckTargets re-establishes TARGET flags across every vnode in nodes
// that is pointed to by some other vnode's INDIRECT resource, undoing any
// erroneous clear from a race between concurrent ClearIndirect calls.
// Runs as the background task spec.md section 4.2 describes.
func RecheckTargets(nodes []*Vnode) {
	targets := make(map[string]map[string]bool) // vnode name -> resource name -> should be target
	for _, n := range nodes {
		avail := n.Attrs.Get(AttrResourcesAvailable)
		if avail == nil || avail.Resources() == nil {
			continue
		}
		avail.Resources().Each(func(r *attribute.Resource) {
			if r.Value.Flags.Has(attribute.FlagIndirect) {
				tname := strings.TrimPrefix(r.Indirect, "@")
				if targets[tname] == nil {
					targets[tname] = make(map[string]bool)
				}
				targets[tname][r.Name] = true
			}
		})
	}
	for _, n := range nodes {
		wanted := targets[n.Name]
		avail := n.Attrs.Get(AttrResourcesAvailable)
		if avail == nil || avail.Resources() == nil {
			continue
		}
		avail.Resources().Each(func(r *attribute.Resource) {
			if wanted[r.Name] && !r.Value.Flags.Has(attribute.FlagTarget) {
				r.Value.Flags |= attribute.FlagTarget
				r.Value.InvalidateCache()
			}
		})
	}
}

func hasRunningSubnode(n *Vnode) bool {
	for _, sn := range n.Subnodes {
		if sn.HasJob() {
			return true
		}
	}
	return false
}

func resourceOn(n *Vnode, name string) *attribute.Resource {
	avail := n.Attrs.Get(AttrResourcesAvailable)
	if avail == nil {
		return nil
	}
	rl := avail.Resources()
	if rl == nil {
		return nil
	}
	return rl.Get(name)
}

func isAlreadyTarget(n *Vnode, name string) bool {
	r := resourceOn(n, name)
	return r != nil && r.Value.Flags.Has(attribute.FlagTarget)
}

func mirrorIndirectIntoAssigned(src, tgt *Vnode, name string) {
	assigned := src.Attrs.Get(AttrResourcesAssigned)
	if assigned == nil {
		return
	}
	rl := assigned.Resources()
	if rl == nil {
		rl = attribute.NewResourceList()
		assigned.SetRaw(rl)
	}
	r := rl.Get(name)
	if r == nil {
		r = &attribute.Resource{Name: name}
		rl.Set(r)
	}
	r.Value.Flags |= attribute.FlagIndirect
	r.Indirect = "@" + tgt.Name
}

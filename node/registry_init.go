package node

import (
	"fmt"

	"github.com/vexxhost/batchd/attribute"
)

// init populates the shared node Registry with the handful of
// resource-list attributes this package's own logic depends on directly
// (resources_available, resources_assigned), so indirect.go and vnode.go
// can assume those two slots exist. No scalar node attribute (state,
// ntype, comment, and so on) is registered into Registry anywhere in
// this repository.
func init() {
	Registry.Register(&attribute.Definition{
		Name:  AttrResourcesAvailable,
		Kind:  attribute.ResourceListKind,
		Flags: attribute.DFlagUsrRead | attribute.DFlagMgrWrite | attribute.DFlagMgrRead,
		Decode: decodeResourceList,
		Encode: encodeResourceList,
		Set:    setResourceList,
		Comp:   compResourceList,
		Free:   freeResourceList,
	})
	Registry.Register(&attribute.Definition{
		Name:  AttrResourcesAssigned,
		Kind:  attribute.ResourceListKind,
		Flags: attribute.DFlagUsrRead | attribute.DFlagSvrWrite | attribute.DFlagReadOnly,
		Decode: decodeResourceList,
		Encode: encodeResourceList,
		Set:    setResourceList,
		Comp:   compResourceList,
		Free:   freeResourceList,
	})
}

func decodeResourceList(v *attribute.Value, name, rescName, strVal string) error {
	rl := v.Resources()
	if rl == nil {
		rl = attribute.NewResourceList()
		v.SetRaw(rl)
	}
	var n int64
	if _, err := fmt.Sscanf(strVal, "%d", &n); err != nil {
		// non-numeric values (e.g. arch strings) are stored as-is via the
		// string form held directly on the Resource's Value.
		r := rl.Get(rescName)
		if r == nil {
			r = &attribute.Resource{Name: rescName}
			rl.Set(r)
		}
		r.Value.Kind = attribute.String
		r.Value.SetRaw(strVal)
		return nil
	}
	r := rl.Get(rescName)
	if r == nil {
		r = &attribute.Resource{Name: rescName}
		rl.Set(r)
	}
	r.Value.Kind = attribute.Long
	r.Value.SetRaw(n)
	return nil
}

func encodeResourceList(v *attribute.Value, name string, mode attribute.EncodeMode) ([]*attribute.Svrattrl, error) {
	rl := v.Resources()
	if rl == nil {
		return nil, nil
	}
	var out []*attribute.Svrattrl
	rl.Each(func(r *attribute.Resource) {
		val := fmt.Sprintf("%v", r.Value.Raw())
		if r.Value.Flags.Has(attribute.FlagIndirect) {
			val = r.Indirect
		}
		out = append(out, &attribute.Svrattrl{Name: name, Resource: r.Name, Value: val})
	})
	return out, nil
}

func setResourceList(dst, src *attribute.Value, op attribute.SetOp) error {
	srl := src.Resources()
	if srl == nil {
		return fmt.Errorf("resource list set: src is not a resource list")
	}
	drl := dst.Resources()
	if drl == nil {
		drl = attribute.NewResourceList()
		dst.SetRaw(drl)
	}
	switch op {
	case attribute.OpSet, attribute.OpInternal:
		srl.Each(func(r *attribute.Resource) {
			cp := *r
			drl.Set(&cp)
		})
	case attribute.OpIncr:
		srl.Each(func(r *attribute.Resource) {
			cur := drl.Get(r.Name)
			if cur == nil {
				cp := *r
				drl.Set(&cp)
				return
			}
			cur.Value.SetRaw(cur.Value.Long() + r.Value.Long())
		})
	case attribute.OpDecr:
		srl.Each(func(r *attribute.Resource) {
			cur := drl.Get(r.Name)
			if cur == nil {
				return
			}
			cur.Value.SetRaw(cur.Value.Long() - r.Value.Long())
		})
	}
	return nil
}

func compResourceList(a, b *attribute.Value) bool {
	ar, br := a.Resources(), b.Resources()
	if ar.Len() != br.Len() {
		return false
	}
	equal := true
	ar.Each(func(r *attribute.Resource) {
		o := br.Get(r.Name)
		if o == nil || o.Value.Raw() != r.Value.Raw() {
			equal = false
		}
	})
	return equal
}

func freeResourceList(v *attribute.Value) {
	v.SetRaw(nil)
}

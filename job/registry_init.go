package job

import "github.com/vexxhost/batchd/attribute"

// init registers the one job attribute this package's own state machine
// reasons about directly: the requested Resource_List (validated against
// node resources_available at run time by the caller). No other job
// attribute is registered into Registry.
func init() {
	Registry.Register(&attribute.Definition{
		Name:  "Resource_List",
		Kind:  attribute.ResourceListKind,
		Flags: attribute.DFlagUsrRead | attribute.DFlagUsrWrite | attribute.DFlagMgrWrite,
		Decode: decodeJobResourceList,
		Encode: encodeJobResourceList,
		Set:    setJobResourceList,
		Comp:   compJobResourceList,
		Free:   freeJobResourceList,
	})
}

func decodeJobResourceList(v *attribute.Value, name, rescName, strVal string) error {
	rl := v.Resources()
	if rl == nil {
		rl = attribute.NewResourceList()
		v.SetRaw(rl)
	}
	r := rl.Get(rescName)
	if r == nil {
		r = &attribute.Resource{Name: rescName}
		rl.Set(r)
	}
	r.Value.Kind = attribute.String
	r.Value.SetRaw(strVal)
	return nil
}

func encodeJobResourceList(v *attribute.Value, name string, mode attribute.EncodeMode) ([]*attribute.Svrattrl, error) {
	rl := v.Resources()
	if rl == nil {
		return nil, nil
	}
	var out []*attribute.Svrattrl
	rl.Each(func(r *attribute.Resource) {
		out = append(out, &attribute.Svrattrl{Name: name, Resource: r.Name, Value: r.Value.Str()})
	})
	return out, nil
}

func setJobResourceList(dst, src *attribute.Value, op attribute.SetOp) error {
	srl := src.Resources()
	drl := dst.Resources()
	if drl == nil {
		drl = attribute.NewResourceList()
		dst.SetRaw(drl)
	}
	if srl == nil {
		return nil
	}
	srl.Each(func(r *attribute.Resource) {
		cp := *r
		drl.Set(&cp)
	})
	return nil
}

func compJobResourceList(a, b *attribute.Value) bool {
	ar, br := a.Resources(), b.Resources()
	return ar.String() == br.String()
}

func freeJobResourceList(v *attribute.Value) {
	v.SetRaw(nil)
}

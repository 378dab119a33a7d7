package attribute

// Svrattrl is the wire-ready encoded form of one attribute (or one resource
// within a resource-list attribute), spec.md section 4.1 "Cached encoding".
// It intentionally does not prescribe a byte layout (spec.md's Non-goals
// exclude wire frame layout); it is the in-memory record that a transport
// layer would serialize.
type Svrattrl struct {
	Name     string
	Resource string // resource name, empty unless this attribute is a resource-list entry
	Value    string
	Op       SetOp
	RefCount int
}

// clone returns a copy with RefCount reset to zero; the cache stores the
// canonical list and callers splice a ref-counted copy onto a reply.
func (s *Svrattrl) clone() *Svrattrl {
	cp := *s
	cp.RefCount = 0
	return &cp
}

// cacheFor returns the cache slot for the given mode: privileged or
// unprivileged. EncodeSave never reads or writes a cache slot — recovery
// encoding always regenerates, matching spec.md's "Resources marked
// read-only are nonetheless decodable at recovery time by temporarily
// elevating the access mask" (recovery bypasses caching entirely).
func (v *Value) cacheFor(mode EncodeMode) *[]*Svrattrl {
	switch mode {
	case EncodePrivileged:
		return &v.privEncoded
	default:
		return &v.unprivEncoded
	}
}

// Encoded returns the cached encoding for the given entity, regenerating
// it via def.Encode if MODCACHE is set or no cache exists yet. Hidden
// attributes are skipped unless showHidden is true, per spec.md section
// 4.1. Each returned record has its RefCount incremented, modelling the
// "cache is spliced onto the reply (ref-count incremented)" rule; the
// cache itself is only rebuilt, never mutated by callers.
func (d *Definition) Encoded(v *Value, mode EncodeMode, showHidden bool) ([]*Svrattrl, error) {
	if d.Flags&DFlagHidden != 0 && !showHidden {
		return nil, nil
	}

	if mode == EncodeSave {
		return d.Encode(v, d.Name, mode)
	}

	slot := v.cacheFor(mode)
	if v.Flags.Has(FlagModCache) || *slot == nil {
		fresh, err := d.Encode(v, d.Name, mode)
		if err != nil {
			return nil, err
		}
		*slot = fresh
		// MODCACHE stays set: nothing in this package clears it, so a
		// value carrying it is re-encoded on every call.
	}

	out := make([]*Svrattrl, len(*slot))
	for i, s := range *slot {
		c := s.clone()
		c.RefCount = s.RefCount + 1
		s.RefCount = c.RefCount
		out[i] = c
	}
	return out, nil
}

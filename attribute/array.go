package attribute

import "fmt"

// Array is a sparse, indexed set of attribute Values for one entity
// instance, paired with the Registry that defines what each slot means.
// spec.md section 3: "attributes are not individually heap-managed; they
// live embedded in the owning entity's attribute array."
type Array struct {
	reg    *Registry
	values []Value
}

// NewArray allocates an Array sized to the registry's current attribute
// count. Registries are expected to be fully populated (all Register
// calls made) before any Array is created against them.
func NewArray(reg *Registry) *Array {
	return &Array{reg: reg, values: make([]Value, reg.Len())}
}

// Registry returns the backing Registry.
func (a *Array) Registry() *Registry { return a.reg }

// Get returns the Value slot for an attribute by name, or nil if no such
// attribute is registered.
func (a *Array) Get(name string) *Value {
	d, ok := a.reg.Lookup(name)
	if !ok {
		return nil
	}
	return &a.values[d.Index]
}

// GetByIndex returns the Value slot at a given definition index.
func (a *Array) GetByIndex(i int) *Value {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return &a.values[i]
}

// Set runs the full generic setter path for an attribute: decode (if src
// is text) is assumed already done by the caller into a *Value, so Set
// here takes an already-typed src Value and applies the owning
// Definition's Set callback, marks SET|MODIFY|MODCACHE, then fires Action
// under the given mode. This is the "generic setter" of spec.md
// section 4.1 that "always honors NEW/ALTER actions".
func (a *Array) Set(name string, src Value, op SetOp, mode ActionMode, parent any) error {
	d, ok := a.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("attribute: unknown name %q for %s", name, a.reg.Owner())
	}
	dst := &a.values[d.Index]
	if d.Set == nil {
		return fmt.Errorf("attribute: %s has no setter", name)
	}
	if err := d.Set(dst, &src, op); err != nil {
		return err
	}
	dst.Flags |= FlagSet | FlagModify
	dst.InvalidateCache()
	if d.Action != nil && mode != ActionNoop {
		if err := d.Action(dst, parent, mode); err != nil {
			return err
		}
	}
	return nil
}

// SetSlim applies a value change without running the Definition's Action
// callback, for recovery and internal bulk-load paths that must not
// trigger new/alter side effects (spec.md section 4.1: "a slim setter
// bypasses actions but must still mark MODIFY+MODCACHE"). It still sets
// SET|MODIFY|MODCACHE so the attribute is re-encoded and re-saved.
func (a *Array) SetSlim(name string, src Value, op SetOp) error {
	d, ok := a.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("attribute: unknown name %q for %s", name, a.reg.Owner())
	}
	dst := &a.values[d.Index]
	if d.Set == nil {
		return fmt.Errorf("attribute: %s has no setter", name)
	}
	if err := d.Set(dst, &src, op); err != nil {
		return err
	}
	dst.Flags |= FlagSet | FlagModify
	dst.InvalidateCache()
	return nil
}

// Clear removes the SET flag and frees auxiliary state, used by unset /
// default-restore operations.
func (a *Array) Clear(name string) error {
	d, ok := a.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("attribute: unknown name %q for %s", name, a.reg.Owner())
	}
	dst := &a.values[d.Index]
	if d.Free != nil {
		d.Free(dst)
	}
	*dst = Value{}
	return nil
}

// EncodeAll returns the encoded form of every SET attribute the given
// access level may read, in registration order. recovering enables the
// elevated mask that makes DFlagReadOnly resources decodable/encodable
// during recovery.
func (a *Array) EncodeAll(level DFlag, mode EncodeMode, showHidden, recovering bool) ([]*Svrattrl, error) {
	var out []*Svrattrl
	for i := range a.values {
		v := &a.values[i]
		if !v.IsSet() {
			continue
		}
		d := a.reg.ByIndex(i)
		if !recovering && !d.readable(level) {
			continue
		}
		recs, err := d.Encoded(v, mode, showHidden)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", d.Name, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

package attribute

import "time"

// Value is the universal cell described in spec.md section 3: a type tag,
// a value union (here a plain `any` since Go has no manual union), flag
// bits, and two independently cached encoded forms. Values live embedded
// in an Array (see array.go), never individually heap-managed, matching
// the "not heap-managed individually" invariant.
type Value struct {
	Kind  Kind
	Flags Flag
	raw   any

	privEncoded   []*Svrattrl
	unprivEncoded []*Svrattrl
}

// Raw returns the underlying Go value (int64 for Long, string for String,
// *ResourceList for ResourceListKind, and so on).
func (v *Value) Raw() any { return v.raw }

// SetRaw assigns the underlying value directly. It does not touch flags or
// caches; callers (Definition.Set implementations) are responsible for
// those per the contract in spec.md section 4.1.
func (v *Value) SetRaw(x any) { v.raw = x }

// IsSet reports whether the SET flag is present.
func (v *Value) IsSet() bool { return v.Flags.Has(FlagSet) }

// InvalidateCache clears both cached encodings and sets MODCACHE, the
// contract every setter (generic or slim) must honor per spec.md section
// 4.1 ("the slim path must never leave the cache stale").
func (v *Value) InvalidateCache() {
	v.Flags |= FlagModCache
	v.privEncoded = nil
	v.unprivEncoded = nil
}

// Long returns the value as int64, zero if not that kind.
func (v *Value) Long() int64 {
	if n, ok := v.raw.(int64); ok {
		return n
	}
	return 0
}

// Str returns the value as string, empty if not that kind.
func (v *Value) Str() string {
	if s, ok := v.raw.(string); ok {
		return s
	}
	return ""
}

// Bool returns the value as bool.
func (v *Value) Bool() bool {
	b, _ := v.raw.(bool)
	return b
}

// Strings returns an array-of-strings value.
func (v *Value) Strings() []string {
	if s, ok := v.raw.([]string); ok {
		return s
	}
	return nil
}

// Time returns a Time-kind value.
func (v *Value) Time() time.Time {
	if t, ok := v.raw.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Resources returns a ResourceListKind value, or nil.
func (v *Value) Resources() *ResourceList {
	rl, _ := v.raw.(*ResourceList)
	return rl
}

// EntityLimitValue returns an EntityLimitKind value, or nil.
func (v *Value) EntityLimitValue() *EntityLimit {
	el, _ := v.raw.(*EntityLimit)
	return el
}

// Clone deep-copies a Value, used for the reservation pre-alter snapshot
// (spec.md section 3 "Reservation alter") and for round-trip tests.
func (v Value) Clone() Value {
	out := v
	out.privEncoded = nil
	out.unprivEncoded = nil
	switch x := v.raw.(type) {
	case *ResourceList:
		out.raw = x.Clone()
	case *EntityLimit:
		out.raw = x.Clone()
	case []string:
		cp := make([]string, len(x))
		copy(cp, x)
		out.raw = cp
	}
	return out
}

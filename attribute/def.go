package attribute

import "fmt"

// Decoder parses a wire/text value into an attribute cell. name is the
// attribute name, rescName is non-empty for resource-list members, and
// strVal is the raw text form (spec.md section 4.1 decode contract).
type Decoder func(v *Value, name, rescName, strVal string) error

// Encoder produces the wire-ready records for a cell. Skipping hidden
// attributes is done by Definition.Encoded, not by the Encoder.
type Encoder func(v *Value, name string, mode EncodeMode) ([]*Svrattrl, error)

// Setter assigns src into dst under the given operator (SET/INCR/DECR),
// spec.md section 4.1 "Set".
type Setter func(dst, src *Value, op SetOp) error

// Comparer reports whether two cells are equal under the kind's equality
// rule (DFlagSetEqual kinds compare as sets, others compare ordered).
type Comparer func(a, b *Value) bool

// Freer releases any auxiliary state a cell holds (most kinds are no-ops;
// resource lists and entity limits just drop their maps to the GC).
type Freer func(v *Value)

// ActionFn runs a side effect when a cell changes under the given mode.
// Most attributes have none; state_count_bucket maintenance, log
// notification, and entity-limit propagation are modelled as actions.
type ActionFn func(v *Value, parent any, mode ActionMode) error

// Definition is the six-function vtable spec.md section 4.1 and section 9
// describe, expressed as interface values (function fields) instead of C
// function pointers. One Definition exists per named attribute and is
// shared by every entity of that attribute's owning type.
type Definition struct {
	Name  string
	Index int
	Kind  Kind
	Flags DFlag

	Decode Decoder
	Encode Encoder
	Set    Setter
	Comp   Comparer
	Free   Freer
	Action ActionFn // nil if the attribute has no side effect
}

// readable reports whether the given access level may read this
// attribute. Levels are cumulative: Mgr implies Opr implies Usr.
func (d *Definition) readable(level DFlag) bool {
	switch {
	case level&DFlagMgrRead != 0:
		return d.Flags&(DFlagUsrRead|DFlagOprRead|DFlagMgrRead|DFlagSvrRead) != 0
	case level&DFlagOprRead != 0:
		return d.Flags&(DFlagUsrRead|DFlagOprRead) != 0
	default:
		return d.Flags&DFlagUsrRead != 0
	}
}

// writable mirrors readable for the write-side bits.
func (d *Definition) writable(level DFlag) bool {
	switch {
	case level&DFlagMgrWrite != 0:
		return d.Flags&(DFlagUsrWrite|DFlagOprWrite|DFlagMgrWrite|DFlagSvrWrite) != 0
	case level&DFlagOprWrite != 0:
		return d.Flags&(DFlagUsrWrite|DFlagOprWrite) != 0
	default:
		return d.Flags&DFlagUsrWrite != 0
	}
}

// CheckWritable returns an error if level may not write this attribute,
// unless the attempt comes from recovery (DFlagReadOnly attributes are
// writable only under ActionRecov, per the "elevated mask at recovery"
// rule in spec.md section 4.1).
func (d *Definition) CheckWritable(level DFlag, recovering bool) error {
	if d.Flags&DFlagReadOnly != 0 && !recovering {
		return fmt.Errorf("attribute %s is read-only", d.Name)
	}
	if !d.writable(level) && !recovering {
		return fmt.Errorf("attribute %s: permission denied", d.Name)
	}
	return nil
}

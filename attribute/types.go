// Package attribute implements the typed, versioned, sparsely-set
// attribute model shared by every persisted entity (server, queue, job,
// reservation, node). It follows the teacher's repository style (small,
// focused types with explicit constructors) but has no teacher analog of
// its own — it is grounded directly in spec.md section 4.1 and in
// original_source's attribute.h/attribute_def parallel-array design, with
// the C vtable replaced by Go interface values per spec.md section 9's
// "Dynamic dispatch for attribute actions" design note.
package attribute

// Kind is the closed set of attribute value types named in spec.md
// section 3.
type Kind int

const (
	Long Kind = iota
	Char
	String
	ArrayString
	Size
	Time
	Float
	Boolean
	ResourceListKind
	ACL
	EntityLimitKind
	OpaqueCached
)

func (k Kind) String() string {
	switch k {
	case Long:
		return "long"
	case Char:
		return "char"
	case String:
		return "string"
	case ArrayString:
		return "array_string"
	case Size:
		return "size"
	case Time:
		return "time"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case ResourceListKind:
		return "resource_list"
	case ACL:
		return "acl"
	case EntityLimitKind:
		return "entity_limit"
	case OpaqueCached:
		return "opaque_cached"
	default:
		return "unknown"
	}
}

// Flag bits carried on every attribute Value.
type Flag uint32

const (
	FlagSet Flag = 1 << iota
	FlagModify
	FlagModCache
	FlagDeflt
	FlagIndirect
	FlagTarget
	FlagHidden
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// DFlag is the per-definition access-control bitmask, ATR_DFLAG_* in
// spec.md section 4.1.
type DFlag uint32

const (
	DFlagUsrRead DFlag = 1 << iota
	DFlagUsrWrite
	DFlagOprRead
	DFlagOprWrite
	DFlagMgrRead
	DFlagMgrWrite
	DFlagSvrRead
	DFlagSvrWrite
	DFlagReadOnly // RDACC: decodable at recovery under an elevated mask even though not writable
	DFlagHidden
	DFlagNoSaveMaster // NOSAVM
	DFlagSetEqual     // SELEQ: equality-only comparison, no ordering
	DFlagAnyAssigned  // ANASSN: pre-linked into resources_assigned on node init
	DFlagFullAssigned // FNASSN
	DFlagMom
)

// SetOp is the operator passed to a Definition's Set callback.
type SetOp int

const (
	OpSet SetOp = iota
	OpIncr
	OpDecr
	OpInternal
)

// ActionMode is the mode passed to a Definition's Action callback.
type ActionMode int

const (
	ActionNew ActionMode = iota
	ActionAlter
	ActionRecov
	ActionFree
	ActionNoop
)

// EncodeMode selects which cached encoding (and which access mask) to
// produce: client-privileged, client-unprivileged, or the on-disk save
// form used at recovery time (spec.md section 4.1 "Cached encoding").
type EncodeMode int

const (
	EncodePrivileged EncodeMode = iota
	EncodeUnprivileged
	EncodeSave
)

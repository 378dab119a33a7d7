package attribute

import (
	"fmt"
	"sort"
	"strings"
)

// LimitScope is the small algebra of operators an entity limit is queried
// under, spec.md section 3 "Entity limit".
type LimitScope int

const (
	ScopeOverall LimitScope = iota
	ScopeUser
	ScopeGroup
	ScopeProject
)

func (s LimitScope) String() string {
	switch s {
	case ScopeUser:
		return "u"
	case ScopeGroup:
		return "g"
	case ScopeProject:
		return "p"
	default:
		return "o"
	}
}

// LimitKey identifies one cell of an entity-limit table: a scope plus the
// principal name (empty for ScopeOverall) and the resource name (empty for
// the bare running/queued counters).
type LimitKey struct {
	Scope    LimitScope
	Entity   string
	Resource string
}

func (k LimitKey) String() string {
	if k.Entity == "" {
		if k.Resource == "" {
			return k.Scope.String()
		}
		return fmt.Sprintf("%s:%s", k.Scope, k.Resource)
	}
	if k.Resource == "" {
		return fmt.Sprintf("%s:%s", k.Scope, k.Entity)
	}
	return fmt.Sprintf("%s:%s:%s", k.Scope, k.Entity, k.Resource)
}

// EntityLimit encodes per-user, per-group, per-project caps: running count,
// queued count, and per-resource consumption, spec.md section 3.
type EntityLimit struct {
	cells map[LimitKey]int64
}

// NewEntityLimit returns an empty limit table.
func NewEntityLimit() *EntityLimit {
	return &EntityLimit{cells: make(map[LimitKey]int64)}
}

// Set stores the cap/consumption for a key.
func (el *EntityLimit) Set(key LimitKey, value int64) {
	el.cells[key] = value
}

// Get returns the value for a key and whether it was present.
func (el *EntityLimit) Get(key LimitKey) (int64, bool) {
	v, ok := el.cells[key]
	return v, ok
}

// Incr adjusts a cell's value, used by the normal set-path when entity
// limits decoded from disk arrive as (first SET, subsequent INCR) per
// spec.md section 4.1 "Decode/recovery".
func (el *EntityLimit) Incr(key LimitKey, delta int64) {
	el.cells[key] += delta
}

// Clone deep-copies the table.
func (el *EntityLimit) Clone() *EntityLimit {
	out := NewEntityLimit()
	for k, v := range el.cells {
		out.cells[k] = v
	}
	return out
}

// Validate checks internal consistency: no negative consumption, no
// negative running/queued counts. Actions call this after apply to
// validate against the other limit attributes per spec.md section 3.
func (el *EntityLimit) Validate() error {
	for k, v := range el.cells {
		if v < 0 {
			return fmt.Errorf("entity limit %s went negative: %d", k, v)
		}
	}
	return nil
}

// String renders the persisted text form, a sorted sequence of key=value
// pairs (spec.md section 3: "Persisted as text").
func (el *EntityLimit) String() string {
	keys := make([]string, 0, len(el.cells))
	byKey := make(map[string]LimitKey, len(el.cells))
	for k := range el.cells {
		s := k.String()
		keys = append(keys, s)
		byKey[s] = k
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, s := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", s, el.cells[byKey[s]]))
	}
	return strings.Join(parts, ",")
}

package attribute

import "fmt"

// Resource is one (resource_def, value) pair inside a ResourceList,
// spec.md section 3 "Resource list".
type Resource struct {
	Name    string
	Value   Value
	Indirect string // non-empty when Value.Flags has FlagIndirect: "@othervnode"
}

// ResourceList is a linked sequence of resources, the value held inside a
// *_ATR_* attribute whose Kind is ResourceListKind (resources_available,
// resources_assigned, ...).
type ResourceList struct {
	order []string
	byName map[string]*Resource
}

// NewResourceList returns an empty resource list.
func NewResourceList() *ResourceList {
	return &ResourceList{byName: make(map[string]*Resource)}
}

// Get returns the named resource, or nil if absent.
func (rl *ResourceList) Get(name string) *Resource {
	if rl == nil {
		return nil
	}
	return rl.byName[name]
}

// Set inserts or replaces a resource by name, preserving first-insertion
// order so encoding is deterministic.
func (rl *ResourceList) Set(r *Resource) {
	if _, exists := rl.byName[r.Name]; !exists {
		rl.order = append(rl.order, r.Name)
	}
	rl.byName[r.Name] = r
}

// Delete removes a resource by name.
func (rl *ResourceList) Delete(name string) {
	if _, exists := rl.byName[name]; !exists {
		return
	}
	delete(rl.byName, name)
	for i, n := range rl.order {
		if n == name {
			rl.order = append(rl.order[:i], rl.order[i+1:]...)
			break
		}
	}
}

// Each iterates resources in insertion order.
func (rl *ResourceList) Each(fn func(*Resource)) {
	if rl == nil {
		return
	}
	for _, n := range rl.order {
		fn(rl.byName[n])
	}
}

// Len reports how many resources the list holds.
func (rl *ResourceList) Len() int {
	if rl == nil {
		return 0
	}
	return len(rl.order)
}

// Clone deep-copies the list; used when an attribute Value is copied by
// value semantics (e.g. reservation snapshot for alter-rollback).
func (rl *ResourceList) Clone() *ResourceList {
	out := NewResourceList()
	rl.Each(func(r *Resource) {
		cp := *r
		out.Set(&cp)
	})
	return out
}

func (rl *ResourceList) String() string {
	s := ""
	rl.Each(func(r *Resource) {
		if s != "" {
			s += ","
		}
		s += fmt.Sprintf("%s=%v", r.Name, r.Value.raw)
	})
	return s
}

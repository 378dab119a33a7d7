package attribute

import "testing"

func TestRegistryRegisterAssignsIndexInOrder(t *testing.T) {
	r := NewRegistry("job")
	a := r.Register(&Definition{Name: "state"})
	b := r.Register(&Definition{Name: "queue"})

	if a.Index != 0 || b.Index != 1 {
		t.Fatalf("want indices 0,1, got %d,%d", a.Index, b.Index)
	}
	if r.Len() != 2 {
		t.Fatalf("want len 2, got %d", r.Len())
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry("job")
	r.Register(&Definition{Name: "state"})

	d, ok := r.Lookup("state")
	if !ok || d.Name != "state" {
		t.Fatal("expected to find registered definition")
	}
	if _, ok := r.Lookup("nonexistent"); ok {
		t.Fatal("expected lookup miss for unregistered name")
	}
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry("job")
	r.Register(&Definition{Name: "state"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(&Definition{Name: "state"})
}

func TestRegistryByIndexOutOfRangeReturnsNil(t *testing.T) {
	r := NewRegistry("job")
	r.Register(&Definition{Name: "state"})

	if r.ByIndex(5) != nil {
		t.Fatal("expected nil for out-of-range index")
	}
	if r.ByIndex(-1) != nil {
		t.Fatal("expected nil for negative index")
	}
}

func TestRegistryOwner(t *testing.T) {
	r := NewRegistry("node")
	if r.Owner() != "node" {
		t.Fatalf("want node, got %s", r.Owner())
	}
}

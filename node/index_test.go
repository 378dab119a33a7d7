package node

import "testing"

func TestIndexAddLookupRemove(t *testing.T) {
	idx := NewIndex()
	n := New("node1")
	if err := idx.Add(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := idx.Lookup("node1"); !ok || got != n {
		t.Fatal("expected to look up the same vnode back")
	}
	if idx.Total() != 1 {
		t.Fatalf("want total 1, got %d", idx.Total())
	}

	total, ok := idx.Remove("node1")
	if !ok {
		t.Fatal("expected removal to succeed")
	}
	if total != 0 {
		t.Fatalf("want total 0 after removal, got %d", total)
	}
	if _, ok := idx.Lookup("node1"); ok {
		t.Fatal("expected node1 to be gone")
	}
}

func TestIndexRejectsDuplicateName(t *testing.T) {
	idx := NewIndex()
	_ = idx.Add(New("node1"))
	if err := idx.Add(New("node1")); err == nil {
		t.Fatal("expected error adding a duplicate vnode name")
	}
}

func TestIndexRemoveUnknownReportsFalse(t *testing.T) {
	idx := NewIndex()
	_ = idx.Add(New("node1"))
	total, ok := idx.Remove("nonexistent")
	if ok {
		t.Fatal("expected removal of unknown vnode to report false")
	}
	if total != 1 {
		t.Fatalf("want total unchanged at 1, got %d", total)
	}
}

func TestIndexRemoveRenumbersOrder(t *testing.T) {
	idx := NewIndex()
	_ = idx.Add(New("node1"))
	_ = idx.Add(New("node2"))
	_ = idx.Add(New("node3"))

	idx.Remove("node2")
	if len(idx.Order) != 2 || idx.Order[0] != "node1" || idx.Order[1] != "node3" {
		t.Fatalf("unexpected order after removal: %v", idx.Order)
	}
}

func TestIndexAlienLookup(t *testing.T) {
	idx := NewIndex()
	alien := New("peer-node1")
	idx.AddAlien(alien)

	if !alien.IsAlien() {
		t.Fatal("expected AddAlien to mark the vnode alien")
	}
	if _, ok := idx.Lookup("peer-node1"); ok {
		t.Fatal("expected alien vnode to be absent from the local index")
	}
	if got, ok := idx.LookupAlien("peer-node1"); !ok || got != alien {
		t.Fatal("expected LookupAlien to find the cached alien vnode")
	}
	if got, ok := idx.LookupAny("peer-node1"); !ok || got != alien {
		t.Fatal("expected LookupAny to fall back to the alien cache")
	}
}

func TestIndexMomByIPPort(t *testing.T) {
	idx := NewIndex()
	m := &MomInfo{Name: "momA", IPs: []string{"10.0.0.1"}, Port: 15002}
	idx.RegisterMom(m)

	got, ok := idx.LookupMom("10.0.0.1", 15002)
	if !ok || got != m {
		t.Fatal("expected to find mom by (ip, port)")
	}
	if _, ok := idx.LookupMom("10.0.0.1", 9999); ok {
		t.Fatal("expected lookup on wrong port to fail")
	}
}

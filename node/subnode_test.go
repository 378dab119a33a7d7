package node

import "testing"

func assignedNcpus(t *testing.T, n *Vnode) int64 {
	t.Helper()
	assigned := n.Attrs.Get(AttrResourcesAssigned)
	if assigned == nil {
		t.Fatal("resources_assigned not registered")
	}
	rl := assigned.Resources()
	if rl == nil {
		return 0
	}
	r := rl.Get("ncpus")
	if r == nil {
		return 0
	}
	return r.Value.Long()
}

func TestResizeSubnodesGrows(t *testing.T) {
	n := New("node1")
	n.ResizeSubnodes(4)
	if len(n.Subnodes) != 4 {
		t.Fatalf("want 4 subnodes, got %d", len(n.Subnodes))
	}
	if n.NSNFree != 4 {
		t.Fatalf("want 4 free, got %d", n.NSNFree)
	}
}

func TestResizeSubnodesShrinkMarksDeletedNotRemoved(t *testing.T) {
	n := New("node1")
	n.ResizeSubnodes(4)
	n.Subnodes[3].Assign("1.batchd")
	n.ResizeSubnodes(2)
	if len(n.Subnodes) != 4 {
		t.Fatalf("want deleted subnode retained while in use, got %d subnodes", len(n.Subnodes))
	}
	if !n.Subnodes[2].Deleted || !n.Subnodes[3].Deleted {
		t.Fatal("expected tail subnodes marked deleted")
	}
}

func TestAssignJobClaimsFreeSubnodes(t *testing.T) {
	n := New("node1")
	n.ResizeSubnodes(2)
	if !n.AssignJob("1.batchd", 2) {
		t.Fatal("expected to claim both free subnodes")
	}
	if n.NSNFree != 0 {
		t.Fatalf("want 0 free after assignment, got %d", n.NSNFree)
	}
	if n.AssignJob("2.batchd", 1) {
		t.Fatal("expected insufficient free subnodes for a second job")
	}
}

func TestReleaseJobReclaimsDeletedSubnode(t *testing.T) {
	n := New("node1")
	n.ResizeSubnodes(2)
	n.AssignJob("1.batchd", 2)
	n.ResizeSubnodes(0)
	if len(n.Subnodes) != 2 {
		t.Fatalf("want deleted-but-in-use subnodes retained, got %d", len(n.Subnodes))
	}

	n.ReleaseJob("1.batchd")
	if len(n.Subnodes) != 0 {
		t.Fatalf("want deleted subnodes reclaimed once job releases, got %d", len(n.Subnodes))
	}
	if n.NSNFree != 0 {
		t.Fatalf("want 0 free after full reclaim, got %d", n.NSNFree)
	}
}

func TestAssignJobMirrorsResourcesAssignedNcpus(t *testing.T) {
	n := New("node1")
	n.ResizeSubnodes(2)
	if got := assignedNcpus(t, n); got != 0 {
		t.Fatalf("want resources_assigned.ncpus=0 before assignment, got %d", got)
	}

	if !n.AssignJob("1.batchd", 1) {
		t.Fatal("expected to claim one free subnode")
	}
	if got := assignedNcpus(t, n); got != 1 {
		t.Fatalf("want resources_assigned.ncpus=1 after assignment, got %d", got)
	}

	n.ReleaseJob("1.batchd")
	if got := assignedNcpus(t, n); got != 0 {
		t.Fatalf("want resources_assigned.ncpus=0 after obit/release, got %d", got)
	}
}

package attribute

import "testing"

func TestEntityLimitSetGet(t *testing.T) {
	el := NewEntityLimit()
	key := LimitKey{Scope: ScopeUser, Entity: "alice"}
	el.Set(key, 5)
	v, ok := el.Get(key)
	if !ok || v != 5 {
		t.Fatalf("want 5, got %d ok=%v", v, ok)
	}
}

func TestEntityLimitIncr(t *testing.T) {
	el := NewEntityLimit()
	key := LimitKey{Scope: ScopeGroup, Entity: "staff"}
	el.Incr(key, 3)
	el.Incr(key, 2)
	v, _ := el.Get(key)
	if v != 5 {
		t.Fatalf("want 5, got %d", v)
	}
}

func TestEntityLimitValidateRejectsNegative(t *testing.T) {
	el := NewEntityLimit()
	el.Set(LimitKey{Scope: ScopeOverall}, -1)
	if err := el.Validate(); err == nil {
		t.Fatal("expected error for negative cell")
	}
}

func TestEntityLimitValidatePassesNonNegative(t *testing.T) {
	el := NewEntityLimit()
	el.Set(LimitKey{Scope: ScopeOverall}, 0)
	el.Set(LimitKey{Scope: ScopeUser, Entity: "bob"}, 10)
	if err := el.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEntityLimitCloneIsIndependent(t *testing.T) {
	el := NewEntityLimit()
	key := LimitKey{Scope: ScopeUser, Entity: "alice"}
	el.Set(key, 1)

	cp := el.Clone()
	cp.Incr(key, 10)

	v, _ := el.Get(key)
	if v != 1 {
		t.Fatalf("want original unaffected at 1, got %d", v)
	}
	cv, _ := cp.Get(key)
	if cv != 11 {
		t.Fatalf("want clone at 11, got %d", cv)
	}
}

func TestEntityLimitStringSortedDeterministic(t *testing.T) {
	el := NewEntityLimit()
	el.Set(LimitKey{Scope: ScopeUser, Entity: "bob"}, 2)
	el.Set(LimitKey{Scope: ScopeUser, Entity: "alice"}, 1)

	got := el.String()
	want := "u:alice=1,u:bob=2"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

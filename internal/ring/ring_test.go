package ring

import "testing"

func TestSuccessorIsNextMember(t *testing.T) {
	r := New("b")
	r.UpdateMembers([]string{"a", "b", "c"})

	succ, ok := r.Successor()
	if !ok || succ != "c" {
		t.Fatalf("successor = %q, %v; want c, true", succ, ok)
	}
}

func TestSuccessorWrapsAroundEnd(t *testing.T) {
	r := New("c")
	r.UpdateMembers([]string{"a", "b", "c"})

	succ, ok := r.Successor()
	if !ok || succ != "a" {
		t.Fatalf("successor = %q, %v; want a, true", succ, ok)
	}
}

func TestUpdateMembersIdempotent(t *testing.T) {
	r := New("a")
	list := []string{"a", "b", "c"}
	r.UpdateMembers(list)
	first := r.Members()
	r.UpdateMembers(list)
	second := r.Members()

	if len(first) != len(second) {
		t.Fatalf("members changed across idempotent update: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("members changed across idempotent update: %v vs %v", first, second)
		}
	}
}

func TestRemoveCrashedRecomputesSuccessor(t *testing.T) {
	r := New("a")
	r.UpdateMembers([]string{"a", "b", "c"})

	succ, ok := r.RemoveCrashed("b")
	if !ok || succ != "c" {
		t.Fatalf("successor after removing b = %q, %v; want c, true", succ, ok)
	}
}

func TestSuccessorEmptyRing(t *testing.T) {
	r := New("a")
	if _, ok := r.Successor(); ok {
		t.Fatal("expected no successor on empty ring")
	}
}

func TestPeersExcludesSelf(t *testing.T) {
	r := New("b")
	r.UpdateMembers([]string{"a", "b", "c"})
	peers := r.Peers()
	for _, p := range peers {
		if p == "b" {
			t.Fatal("peers should not include self")
		}
	}
	if len(peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(peers))
	}
}

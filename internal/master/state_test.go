package master

import (
	"testing"
	"time"
)

func TestJoinRejectsBadPort(t *testing.T) {
	s := New()
	if err := s.Join("h", "notaport"); err != ErrBadPort {
		t.Fatalf("Join with bad port = %v, want ErrBadPort", err)
	}
	if len(s.replicas) != 0 {
		t.Fatal("membership mutated after rejected join")
	}
}

func TestJoinElectsLowestPortAsLeader(t *testing.T) {
	s := New()
	mustJoin(t, s, "h", "8002")
	mustJoin(t, s, "h", "8001")
	mustJoin(t, s, "h", "8003")

	s.mu.Lock()
	leader, ok := s.leaderLocked()
	s.mu.Unlock()
	if !ok || leader != "h:8001" {
		t.Fatalf("leader = %q, want h:8001", leader)
	}
}

func TestReplicaCrashedIdempotent(t *testing.T) {
	s := New()
	mustJoin(t, s, "h", "8001")
	mustJoin(t, s, "h", "8002")

	s.ReplicaCrashed("h:8001")
	if n := len(s.replicas); n != 1 {
		t.Fatalf("after first crash: %d replicas, want 1", n)
	}
	s.ReplicaCrashed("h:8001") // idempotent
	if n := len(s.replicas); n != 1 {
		t.Fatalf("after repeat crash: %d replicas, want 1", n)
	}
}

func TestLeaderRecomputedAfterCrash(t *testing.T) {
	s := New()
	mustJoin(t, s, "h", "8001")
	mustJoin(t, s, "h", "8002")

	s.ReplicaCrashed("h:8001")

	s.mu.Lock()
	leader, ok := s.leaderLocked()
	s.mu.Unlock()
	if !ok || leader != "h:8002" {
		t.Fatalf("leader after crash = %q, want h:8002", leader)
	}
}

func TestLoadBalancingPicksMinimum(t *testing.T) {
	s := New()
	mustJoin(t, s, "h", "8001")
	mustJoin(t, s, "h", "8002")
	s.IncrementLoad("h:8001")

	ip, port, err := s.ConnectExisting()
	if err != nil {
		t.Fatal(err)
	}
	if ip != "h" || port != "8002" {
		t.Fatalf("ConnectExisting routed to %s:%s, want h:8002", ip, port)
	}
}

func TestLostConnectionNoReplicasLeft(t *testing.T) {
	s := New()
	mustJoin(t, s, "h", "8001")

	if _, _, err := s.LostConnection("h", "8001"); err != ErrNoReplicas {
		t.Fatalf("LostConnection with empty cluster = %v, want ErrNoReplicas", err)
	}
}

func TestTokenInUseThenReplicaReceivedRestoresTimer(t *testing.T) {
	s := New()
	s.startToken(1, 1)

	if !s.ReplicaReceived(1, 1) {
		t.Fatal("expected token 1:1 to be valid")
	}
	s.TokenInUse(1, 1)
	if !s.ReplicaReceived(1, 1) {
		t.Fatal("token should still be valid after being reset from in-use")
	}
}

func TestReplicaReceivedInvalidForUnknownToken(t *testing.T) {
	s := New()
	if s.ReplicaReceived(99, 1) {
		t.Fatal("unknown token reported valid")
	}
}

func TestTokenTimeoutReissuesNextSerialAndDropsOld(t *testing.T) {
	s := New()
	s.startToken(5, 1)

	s.tokenTimeout(5, 1)

	if s.ReplicaReceived(5, 1) {
		t.Fatal("old token should have been dropped after timeout")
	}
	if !s.ReplicaReceived(5, 2) {
		t.Fatal("new token 5:2 should be valid after timeout reissue")
	}
}

func mustJoin(t *testing.T, s *State, ip, port string) {
	t.Helper()
	if err := s.Join(ip, port); err != nil {
		t.Fatalf("Join(%s,%s): %v", ip, port, err)
	}
	time.Sleep(0) // Join's broadcast goroutine is best-effort and not awaited by tests
}

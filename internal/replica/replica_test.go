package replica

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collabd/internal/docstore"
)

func newTestReplica(t *testing.T) *Replica {
	t.Helper()
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New("h:9001", "h:8000", store)
}

func TestRecvTokenWithEmptyQueueReportsNotUsing(t *testing.T) {
	r := newTestReplica(t)
	r.EnsureQueue(1)

	if using := r.RecvToken(1, 1); using {
		t.Fatal("expected using=false for empty queue")
	}
}

func TestRecvTokenGrantsHeadOfQueue(t *testing.T) {
	r := newTestReplica(t)
	w := r.Enqueue(7)

	if using := r.RecvToken(7, 3); !using {
		t.Fatal("expected using=true when a waiter is queued")
	}
	select {
	case serial := <-w.Granted:
		if serial != 3 {
			t.Fatalf("granted serial = %d, want 3", serial)
		}
	default:
		t.Fatal("waiter was not granted the token")
	}
}

func TestRecvTokenWithEmptyQueueForwardsToSuccessor(t *testing.T) {
	ackedMaster := make(chan struct{}, 1)
	master := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/replicaRecvToken/") {
			ackedMaster <- struct{}{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid": true}`))
	}))
	defer master.Close()

	forwarded := make(chan struct{}, 1)
	successor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/recvToken/") {
			forwarded <- struct{}{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"using": false}`))
	}))
	defer successor.Close()

	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := New(strings.TrimPrefix(master.URL, "http://"), strings.TrimPrefix(master.URL, "http://"), store)
	r.UpdateServerList([]string{r.selfAddr, strings.TrimPrefix(successor.URL, "http://")})

	if using := r.RecvToken(1, 1); using {
		t.Fatal("expected using=false for empty queue")
	}

	select {
	case <-ackedMaster:
	case <-time.After(2 * time.Second):
		t.Fatal("token was never acked to master when queue was empty")
	}

	select {
	case <-forwarded:
	case <-time.After(4 * time.Second):
		t.Fatal("token was never forwarded to successor when queue was empty")
	}
}

func TestRecvTokenIsFIFO(t *testing.T) {
	r := newTestReplica(t)
	first := r.Enqueue(1)
	r.Enqueue(1)

	r.RecvToken(1, 1)
	select {
	case <-first.Granted:
	default:
		t.Fatal("first waiter should have been granted first")
	}
}

func TestStopEditingWithoutHeldTokenIsNoop(t *testing.T) {
	r := newTestReplica(t)
	r.StopEditing(42) // should not panic or block
}

func TestUpdateServerListComputesSuccessor(t *testing.T) {
	r := newTestReplica(t)
	r.UpdateServerList([]string{"h:9000", "h:9001", "h:9002"})

	succ, ok := r.ring.Successor()
	if !ok || succ != "h:9002" {
		t.Fatalf("successor = %q, ok=%v, want h:9002", succ, ok)
	}
}

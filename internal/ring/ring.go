// Package ring tracks the ordered list of replica addresses a single
// replica process uses to compute its token-passing successor.
//
// Documents are fully replicated across every replica (no sharding), so
// unlike a consistent-hash ring this is nothing more than an ordered list
// plus index arithmetic. The lock exists because two independent events can
// race to mutate the list: a fresh membership broadcast from the master,
// and a locally-detected crash of the current successor discovered while
// forwarding a token. Both must agree on one successor afterwards.
package ring

import "sync"

// Ring holds one replica's view of the cluster membership order and its
// own position within it.
type Ring struct {
	mu      sync.Mutex
	self    string
	members []string
}

// New creates a Ring for the replica listening at self. The member list is
// empty until the first UpdateMembers call from the master.
func New(self string) *Ring {
	return &Ring{self: self}
}

// UpdateMembers replaces the membership list wholesale, as received from
// the master's broadcast. It is idempotent: applying the same list twice
// leaves the ring in the same state.
func (r *Ring) UpdateMembers(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append([]string(nil), members...)
}

// Members returns a copy of the current membership list.
func (r *Ring) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members...)
}

// Successor returns the address this replica should forward tokens to,
// and whether one exists. If self is not present in the
// list (can happen transiently during startup) or the list is empty, ok is
// false.
func (r *Ring) Successor() (addr string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successorLocked()
}

func (r *Ring) successorLocked() (string, bool) {
	n := len(r.members)
	if n == 0 {
		return "", false
	}
	idx := -1
	for i, m := range r.members {
		if m == r.self {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", false
	}
	return r.members[(idx+1)%n], true
}

// RemoveCrashed drops addr from the local list (if present) and recomputes
// the successor. It is used when a token hop or peer forward to addr
// fails, so the next attempt targets a different replica without waiting
// for the master's next broadcast.
func (r *Ring) RemoveCrashed(addr string) (newSuccessor string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m == addr {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	return r.successorLocked()
}

// Peers returns every member except self, the set that peer content
// propagation must reach.
func (r *Ring) Peers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if m != r.self {
			peers = append(peers, m)
		}
	}
	return peers
}

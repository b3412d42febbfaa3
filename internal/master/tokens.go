package master

import (
	"fmt"
	"log"
)

func tokenKey(docID, serial int64) string {
	return fmt.Sprintf("%d:%d", docID, serial)
}

// bootstrapTokens pulls the document list from the current leader and
// starts one token per document, each at serial 1, then asks the leader to
// start circulating them. Called once, the first time any replica has been
// observed (spec.md §4.2).
func (s *State) bootstrapTokens() {
	s.mu.Lock()
	leader, ok := s.leaderLocked()
	s.mu.Unlock()
	if !ok {
		return
	}

	docs, err := s.fetchDocList(leader)
	if err != nil {
		log.Printf("master: bootstrapTokens: failed to fetch doc list from leader %s: %v", leader, err)
		return
	}

	for _, d := range docs {
		s.startToken(d.ID, 1)
	}

	s.withLeaderRetry(func(addr string) error {
		return s.requestInitializeTokens(addr)
	})
}

// OnTokenInitializedForNewDoc is called from the create-document admission
// path: it starts token (docID, 1) and asks the leader to circulate it.
func (s *State) OnTokenInitializedForNewDoc(docID int64) {
	s.startToken(docID, 1)
	s.withLeaderRetry(func(addr string) error {
		return s.requestInitializeToken(addr, docID, 1)
	})
}

// startToken records a new valid token and arms its liveness timer.
func (s *State) startToken(docID, serial int64) {
	key := tokenKey(docID, serial)
	s.mu.Lock()
	entry := &tokenEntry{docID: docID, serial: serial}
	entry.timer = newResettableTimer(TokenTimeout, func() { s.tokenTimeout(docID, serial) })
	s.tokens[key] = entry
	s.mu.Unlock()
}

// ReplicaReceived is the master-ack half of the two-phase token protocol
// (spec.md §4.5): a replica that just received (docID, serial) asks
// whether it is still the valid token for that document before using or
// forwarding it. If valid, its liveness timer is reset to a full duration.
func (s *State) ReplicaReceived(docID, serial int64) (valid bool) {
	key := tokenKey(docID, serial)
	s.mu.Lock()
	entry, ok := s.tokens[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.timer.Reset()
	return true
}

// TokenInUse cancels the liveness timer for (docID, serial): the token is
// now held by an editing client rather than in flight, so the master stops
// counting down until the replica later reports it circulating again.
func (s *State) TokenInUse(docID, serial int64) {
	key := tokenKey(docID, serial)
	s.mu.Lock()
	entry, ok := s.tokens[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	entry.timer.Cancel()
}

// tokenTimeout fires when a token has not been re-acked within
// TokenTimeout: the holder is presumed crashed. The token is retired and
// the next serial is issued and injected into the ring via the leader,
// retrying across leader crashes until it succeeds or the cluster empties.
func (s *State) tokenTimeout(docID, serial int64) {
	key := tokenKey(docID, serial)
	s.mu.Lock()
	delete(s.tokens, key)
	s.mu.Unlock()

	next := serial + 1
	log.Printf("master: token %s timed out, reissuing %d:%d", key, docID, next)
	s.startToken(docID, next)

	s.withLeaderRetry(func(addr string) error {
		return s.requestInitializeToken(addr, docID, next)
	})
}

// withLeaderRetry calls fn against the current leader, treating a
// transport failure as a leader crash: the dead leader is removed, the
// leader is recomputed, and fn is retried. Loops until success or the
// cluster is empty.
func (s *State) withLeaderRetry(fn func(addr string) error) {
	for {
		s.mu.Lock()
		leader, ok := s.leaderLocked()
		s.mu.Unlock()
		if !ok {
			log.Printf("master: withLeaderRetry: no replicas left")
			return
		}
		if err := fn(leader); err != nil {
			log.Printf("master: leader %s failed, removing and retrying: %v", leader, err)
			s.ReplicaCrashed(leader)
			continue
		}
		return
	}
}

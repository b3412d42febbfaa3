// Package master implements the singleton cluster coordinator: membership
// and leader election, the token registry and its liveness timers, and
// client admission / load-based rerouting.
//
// The whole package is modeled on the teacher's cluster.Membership
// (internal/cluster/membership.go in the pack's ppriyankuu-godkv repo): one
// struct holding all mutable state behind a single mutex, with exported
// methods as the only way in — spec.md's design note about replacing
// global mutable singletons with fields of a state value.
package master

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenTimeout is the maximum duration the master waits between successive
// replicaRecvToken acks before declaring a token lost. Recommended by the
// spec to stay well above hop_sleep * N for small clusters.
const TokenTimeout = 20 * time.Second

// ReplicaInfo is the master's view of one cluster member.
type ReplicaInfo struct {
	Address       string
	ClientsOnline int
}

// DocSummary is the (id, name) pair the master pulls from the leader at
// bootstrap and hands back on GET /docList.
type DocSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tokenEntry struct {
	docID  int64
	serial int64
	timer  *ResettableTimer
}

// State holds all master-side mutable cluster state behind one mutex, per
// spec.md's "ownership of mutable cluster state" design note.
type State struct {
	mu sync.Mutex

	replicas    []ReplicaInfo
	leaderIndex int

	tokens            map[string]*tokenEntry
	tokensInitialized bool

	httpClient *http.Client
}

// New creates an empty master state. The cluster starts with no members;
// replicas register themselves via Join.
func New() *State {
	return &State{
		tokens:     make(map[string]*tokenEntry),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// ErrBadPort is returned by Join when the supplied port is not a positive
// integer, per spec.md §4.1's malformed-input handling.
var ErrBadPort = fmt.Errorf("port must be a positive integer")

// ErrNoReplicas is returned when an admission or rerouting request cannot
// be served because the cluster is empty.
var ErrNoReplicas = fmt.Errorf("no servers online")

func splitHostPort(address string) (host, port string, ok bool) {
	i := strings.LastIndex(address, ":")
	if i < 0 {
		return "", "", false
	}
	return address[:i], address[i+1:], true
}

func validPort(port string) bool {
	n, err := strconv.Atoi(port)
	return err == nil && n > 0
}

// Join admits a new replica into the cluster, recomputes the leader, and
// kicks off a best-effort asynchronous broadcast of the new membership
// list (spec.md §4.1). The returned error is ErrBadPort for a malformed
// port; membership is left untouched in that case.
func (s *State) Join(ip, port string) error {
	if !validPort(port) {
		return ErrBadPort
	}
	address := ip + ":" + port

	s.mu.Lock()
	found := false
	for _, r := range s.replicas {
		if r.Address == address {
			found = true
			break
		}
	}
	if !found {
		s.replicas = append(s.replicas, ReplicaInfo{Address: address})
	}
	s.recomputeLeaderLocked()
	snapshot := s.membersLocked()
	s.mu.Unlock()

	go s.broadcastMembership(snapshot)
	return nil
}

// ReplicaCrashed idempotently removes address from membership and
// recomputes the leader. Safe to call repeatedly for the same address
// (spec.md testable property #6).
func (s *State) ReplicaCrashed(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(address)
}

func (s *State) removeLocked(address string) {
	for i, r := range s.replicas {
		if r.Address == address {
			s.replicas = append(s.replicas[:i], s.replicas[i+1:]...)
			break
		}
	}
	s.recomputeLeaderLocked()
}

// recomputeLeaderLocked sets leaderIndex to the replica with the
// numerically smallest port. Must be called with s.mu held.
func (s *State) recomputeLeaderLocked() {
	if len(s.replicas) == 0 {
		s.leaderIndex = 0
		return
	}
	best := 0
	bestPort := portOf(s.replicas[0].Address)
	for i := 1; i < len(s.replicas); i++ {
		p := portOf(s.replicas[i].Address)
		if p < bestPort {
			best, bestPort = i, p
		}
	}
	s.leaderIndex = best
}

func portOf(address string) int {
	_, port, ok := splitHostPort(address)
	if !ok {
		return 1 << 30
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 1 << 30
	}
	return n
}

// leaderLocked returns the current leader's address. Must be called with
// s.mu held. ok is false if the cluster is empty.
func (s *State) leaderLocked() (string, bool) {
	if len(s.replicas) == 0 {
		return "", false
	}
	return s.replicas[s.leaderIndex].Address, true
}

func (s *State) membersLocked() []string {
	out := make([]string, len(s.replicas))
	for i, r := range s.replicas {
		out[i] = r.Address
	}
	return out
}

// GetLoad returns the current clients_online for address.
func (s *State) GetLoad(address string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.replicas {
		if r.Address == address {
			return r.ClientsOnline, true
		}
	}
	return 0, false
}

// IncrementLoad bumps clients_online for address by one.
func (s *State) IncrementLoad(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.replicas {
		if r.Address == address {
			s.replicas[i].ClientsOnline++
			return
		}
	}
}

// DecrementLoad drops clients_online for address by one, used when a
// replica reports it lost a client.
func (s *State) DecrementLoad(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.replicas {
		if r.Address == address {
			s.replicas[i].ClientsOnline--
			return
		}
	}
}

// minLoadLocked returns the index of the replica with the fewest
// clients_online. Must be called with s.mu held and len(s.replicas) > 0.
func (s *State) minLoadLocked() int {
	best := 0
	for i := 1; i < len(s.replicas); i++ {
		if s.replicas[i].ClientsOnline < s.replicas[best].ClientsOnline {
			best = i
		}
	}
	return best
}

// Package replica implements a replica node's share of the ring-based
// token-passing protocol: tracking its successor, holding the per-document
// FIFO queue of clients waiting to edit, and forwarding tokens around the
// ring with the master kept informed at every hop.
//
// The single mutex-guarded state struct follows the teacher's
// cluster.Membership / cluster.Replicator shape (internal/cluster in the
// pack's ppriyankuu-godkv repo); the token forwarding loop and its
// exception handling are grounded directly in backend/replica/server.py's
// send_token from the original implementation.
package replica

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"collabd/internal/docstore"
	"collabd/internal/ring"
)

// hopSleep is the delay the original implementation waits before forwarding
// a token to the successor, giving the receiving replica time to drain its
// queue before the token moves on.
const hopSleep = 2 * time.Second

// Waiter is one client's place in a document's edit queue. Granted receives
// the token's serial number, once, when the token reaches the front of the
// queue and is handed to this waiter; the channel is never closed.
type Waiter struct {
	Granted chan int64
}

func newWaiter() *Waiter {
	return &Waiter{Granted: make(chan int64, 1)}
}

// Replica holds one node's view of the ring and its document edit queues.
type Replica struct {
	mu sync.Mutex

	selfAddr   string
	masterAddr string

	ring *ring.Ring
	docs *docstore.Store

	queues      map[int64][]*Waiter
	tokenSerial map[int64]int64 // serial of the token currently held for docID

	httpClient *http.Client
}

// New creates a Replica bound to selfAddr (this node's own host:port) and
// masterAddr (the coordinator to report liveness and receive tokens to).
func New(selfAddr, masterAddr string, docs *docstore.Store) *Replica {
	return &Replica{
		selfAddr:    selfAddr,
		masterAddr:  masterAddr,
		ring:        ring.New(selfAddr),
		docs:        docs,
		queues:      make(map[int64][]*Waiter),
		tokenSerial: make(map[int64]int64),
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Docs exposes the underlying document store.
func (r *Replica) Docs() *docstore.Store { return r.docs }

// UpdateServerList replaces the ring membership, recomputing this node's
// successor (spec.md §4.1/§4.4: the master pushes the full list on every
// membership change).
func (r *Replica) UpdateServerList(members []string) {
	r.ring.UpdateMembers(members)
}

// EnsureQueue makes sure a waiter queue exists for docID; called when a
// document is first learned about (creation or replication bootstrap).
func (r *Replica) EnsureQueue(docID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[docID]; !ok {
		r.queues[docID] = nil
	}
}

// Enqueue appends a new waiter to docID's FIFO queue and returns it; the
// caller blocks on w.Granted until RecvToken pops it to the front.
func (r *Replica) Enqueue(docID int64) *Waiter {
	w := newWaiter()
	r.mu.Lock()
	r.queues[docID] = append(r.queues[docID], w)
	r.mu.Unlock()
	return w
}

// RecvToken handles a token arriving at this replica for (docID, serial).
// If a waiter is queued for docID, it is popped and granted the token —
// RecvToken returns using=true and holds onto the token (the waiter will
// forward it on, via StopEditing, once done). Otherwise RecvToken forwards
// the token to the successor itself as a background task and returns
// using=false, matching recv_token in the original implementation.
func (r *Replica) RecvToken(docID, serial int64) (using bool) {
	r.mu.Lock()
	q := r.queues[docID]
	if len(q) == 0 {
		r.mu.Unlock()
		go r.SendToken(docID, serial)
		return false
	}
	head := q[0]
	r.queues[docID] = q[1:]
	r.tokenSerial[docID] = serial
	r.mu.Unlock()
	head.Granted <- serial
	return true
}

// StopEditing returns the token a client just released back into
// circulation by forwarding it from this replica.
func (r *Replica) StopEditing(docID int64) {
	r.mu.Lock()
	serial, ok := r.tokenSerial[docID]
	r.mu.Unlock()
	if !ok {
		return
	}
	go r.SendToken(docID, serial)
}

// InitializeTokens starts a forwarding goroutine at serial 1 for every
// document this replica knows about (spec.md §4.2 bootstrap, issued to the
// leader by the master).
func (r *Replica) InitializeTokens() {
	for _, d := range r.docs.List() {
		go r.SendToken(d.ID, 1)
	}
}

// InitializeToken starts a forwarding goroutine for a single new token.
func (r *Replica) InitializeToken(docID, serial int64) {
	go r.SendToken(docID, serial)
}

// SendToken acks the token to the master, then forwards it to the current
// successor, retrying indefinitely against a freshly recomputed successor
// whenever the current one is unreachable — mirroring send_token in the
// original implementation, which never gives up on a token. Runs as its
// own goroutine; callers never wait on it.
func (r *Replica) SendToken(docID, serial int64) {
	valid, err := r.replicaRecvTokenOnMaster(docID, serial)
	if err != nil {
		log.Printf("replica: could not reach master to ack token %d:%d: %v", docID, serial, err)
		return
	}
	if !valid {
		log.Printf("replica: token %d:%d reported invalid by master, dropping", docID, serial)
		return
	}

	for {
		succ, ok := r.ring.Successor()
		if !ok {
			log.Printf("replica: no successor available, dropping token %d:%d", docID, serial)
			return
		}

		time.Sleep(hopSleep)

		using, err := r.sendRecvTokenRequest(succ, docID, serial)
		if err != nil {
			log.Printf("replica: successor %s unreachable forwarding token %d:%d: %v", succ, docID, serial, err)
			r.reportCrash(succ)
			r.ring.RemoveCrashed(succ)
			continue
		}
		if using {
			r.reportTokenInUse(docID, serial)
		}
		return
	}
}

func (r *Replica) replicaRecvTokenOnMaster(docID, serial int64) (valid bool, err error) {
	url := fmt.Sprintf("http://%s/replicaRecvToken/%d/%d", r.masterAddr, docID, serial)
	resp, err := r.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

func (r *Replica) sendRecvTokenRequest(addr string, docID, serial int64) (using bool, err error) {
	url := fmt.Sprintf("http://%s/recvToken/%d/%d", addr, docID, serial)
	resp, err := r.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var out struct {
		Using bool `json:"using"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Using, nil
}

func (r *Replica) reportTokenInUse(docID, serial int64) {
	url := fmt.Sprintf("http://%s/tokenInUse/%d/%d", r.masterAddr, docID, serial)
	resp, err := r.httpClient.Post(url, "application/json", nil)
	if err != nil {
		log.Printf("replica: failed to report tokenInUse %d:%d: %v", docID, serial, err)
		return
	}
	resp.Body.Close()
}

func (r *Replica) reportCrash(addr string) {
	host, port, ok := splitHostPort(addr)
	if !ok {
		return
	}
	url := fmt.Sprintf("http://%s/replicaCrashed/%s/%s", r.masterAddr, host, port)
	resp, err := r.httpClient.Post(url, "application/json", nil)
	if err != nil {
		log.Printf("replica: failed to report crash of %s: %v", addr, err)
		return
	}
	resp.Body.Close()
}

func splitHostPort(address string) (host, port string, ok bool) {
	i := strings.LastIndex(address, ":")
	if i < 0 {
		return "", "", false
	}
	return address[:i], address[i+1:], true
}

// ReportNewDoc tells the replica to track docID in its queue table; used
// when a document created elsewhere is first referenced here.
func (r *Replica) ReportNewDoc(docID int64) {
	r.EnsureQueue(docID)
}

// Peers returns every other replica currently in the ring, for fanning out
// content propagation (spec.md §4.7).
func (r *Replica) Peers() []string {
	return r.ring.Peers()
}

// Self returns this replica's own host:port.
func (r *Replica) Self() string {
	return r.selfAddr
}

// ReportCrash tells the master that addr appears to be unreachable.
func (r *Replica) ReportCrash(addr string) {
	r.reportCrash(addr)
}

// RemoveCrashed drops addr from this replica's local view of the ring,
// recomputing its successor if addr was it.
func (r *Replica) RemoveCrashed(addr string) {
	r.ring.RemoveCrashed(addr)
}

// ReportLostClient tells the master that a client websocket disconnected
// from this replica, so its load counter can be decremented.
func (r *Replica) ReportLostClient() error {
	host, port, ok := splitHostPort(r.selfAddr)
	if !ok {
		return fmt.Errorf("replica: invalid self address %q", r.selfAddr)
	}
	url := fmt.Sprintf("http://%s/lostClient/%s/%s", r.masterAddr, host, port)
	resp, err := r.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AnnounceSelf registers this replica with the master at addr, matching
// the startup POST /addServer in spec.md §4.1.
func (r *Replica) AnnounceSelf() error {
	host, port, ok := splitHostPort(r.selfAddr)
	if !ok {
		return fmt.Errorf("replica: invalid self address %q", r.selfAddr)
	}
	url := fmt.Sprintf("http://%s/addServer?IP=%s&port=%s", r.masterAddr, host, port)
	resp, err := r.httpClient.Post(url, "application/json", bytes.NewReader(nil))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("addServer: master returned %d", resp.StatusCode)
	}
	return nil
}

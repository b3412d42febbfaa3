package master

// CreateDocAndConnectResult is the reply to POST /createDocAndConnect.
type CreateDocAndConnectResult struct {
	DocID int64
	Name  string
	IP    string
	Port  string
}

// CreateDocAndConnect creates name on the first reachable replica,
// assigns the client its home replica (minimum load), starts the new
// document's token circulating via the leader, and increments the home
// replica's load (spec.md §4.3).
func (s *State) CreateDocAndConnect(name string) (CreateDocAndConnectResult, error) {
	s.mu.Lock()
	candidates := append([]ReplicaInfo(nil), s.replicas...)
	s.mu.Unlock()

	var docID int64
	created := false
	for _, r := range candidates {
		id, err := s.requestNewDocID(r.Address, name)
		if err != nil {
			s.ReplicaCrashed(r.Address)
			continue
		}
		docID = id
		created = true
		break
	}
	if !created {
		return CreateDocAndConnectResult{}, ErrNoReplicas
	}

	s.mu.Lock()
	if len(s.replicas) == 0 {
		s.mu.Unlock()
		return CreateDocAndConnectResult{}, ErrNoReplicas
	}
	idx := s.minLoadLocked()
	s.replicas[idx].ClientsOnline++
	home := s.replicas[idx].Address
	s.mu.Unlock()

	s.OnTokenInitializedForNewDoc(docID)

	ip, port, _ := splitHostPort(home)
	return CreateDocAndConnectResult{DocID: docID, Name: name, IP: ip, Port: port}, nil
}

// ConnectExisting picks the replica with minimum load for a client joining
// an already-existing document, increments its load, and returns it
// (spec.md §4.3).
func (s *State) ConnectExisting() (ip, port string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replicas) == 0 {
		return "", "", ErrNoReplicas
	}
	idx := s.minLoadLocked()
	s.replicas[idx].ClientsOnline++
	ip, port, _ = splitHostPort(s.replicas[idx].Address)
	return ip, port, nil
}

// LostConnection removes the replica at ip:port (client-supplied crash
// evidence) if present, then reroutes the client to the replica with
// minimum load (spec.md §4.3).
func (s *State) LostConnection(ip, port string) (newIP, newPort string, err error) {
	crashed := ip + ":" + port
	s.mu.Lock()
	s.removeLocked(crashed)
	if len(s.replicas) == 0 {
		s.mu.Unlock()
		return "", "", ErrNoReplicas
	}
	idx := s.minLoadLocked()
	s.replicas[idx].ClientsOnline++
	newIP, newPort, _ = splitHostPort(s.replicas[idx].Address)
	s.mu.Unlock()
	return newIP, newPort, nil
}

// LostClient decrements the load counter for the replica that reported
// losing a client connection.
func (s *State) LostClient(ip, port string) {
	s.DecrementLoad(ip + ":" + port)
}

// DocList proxies GET /docList to the current leader, retrying against a
// newly-elected leader if the request fails, until it succeeds or the
// cluster is empty.
func (s *State) DocList() ([]DocSummary, error) {
	for {
		s.mu.Lock()
		leader, ok := s.leaderLocked()
		s.mu.Unlock()
		if !ok {
			return nil, ErrNoReplicas
		}
		docs, err := s.fetchDocList(leader)
		if err != nil {
			s.ReplicaCrashed(leader)
			continue
		}
		return docs, nil
	}
}

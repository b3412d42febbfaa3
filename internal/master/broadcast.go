package master

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
)

// broadcastMembership pushes the given membership list to every replica in
// it. A replica that fails to respond is treated as crashed and removed;
// broadcasting continues to the rest (spec.md §4.1: best effort). Once
// broadcasting finishes, it bootstraps the token registry the first time a
// replica has ever been observed.
func (s *State) broadcastMembership(members []string) {
	for _, addr := range members {
		if err := s.updateServerList(addr, members); err != nil {
			log.Printf("master: broadcast to %s failed, treating as crashed: %v", addr, err)
			s.ReplicaCrashed(addr)
		}
	}

	s.mu.Lock()
	needsBootstrap := !s.tokensInitialized && len(s.replicas) > 0
	if needsBootstrap {
		s.tokensInitialized = true
	}
	s.mu.Unlock()

	if needsBootstrap {
		s.bootstrapTokens()
	}
}

func (s *State) updateServerList(addr string, members []string) error {
	body, err := json.Marshal(members)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Post(fmt.Sprintf("http://%s/updateServerList", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("updateServerList: replica %s returned %d", addr, resp.StatusCode)
	}
	return nil
}

func (s *State) fetchDocList(addr string) ([]DocSummary, error) {
	resp, err := s.httpClient.Get(fmt.Sprintf("http://%s/docList", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("docList: replica %s returned %d", addr, resp.StatusCode)
	}
	var docs []DocSummary
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *State) requestInitializeTokens(addr string) error {
	resp, err := s.httpClient.Post(fmt.Sprintf("http://%s/initializeTokens", addr), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("initializeTokens: replica %s returned %d", addr, resp.StatusCode)
	}
	return nil
}

func (s *State) requestInitializeToken(addr string, docID, serial int64) error {
	url := fmt.Sprintf("http://%s/initializeToken/%d/%d", addr, docID, serial)
	resp, err := s.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("initializeToken: replica %s returned %d", addr, resp.StatusCode)
	}
	return nil
}

func (s *State) requestNewDocID(addr, name string) (int64, error) {
	url := fmt.Sprintf("http://%s/newDocID/%s", addr, name)
	resp, err := s.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("newDocID: replica %s returned %d", addr, resp.StatusCode)
	}
	var out struct {
		DocID int64 `json:"docID"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.DocID, nil
}

// Package sdk is the client library cmd/client uses to talk to the master
// and to a document's home replica: a thin, typed wrapper over the HTTP
// calls and a WebSocket dial helper for the edit channel. Adapted from the
// teacher's internal/client.Client (same "one struct per node, clean Go
// methods instead of raw HTTP everywhere" shape), generalized from a
// single-node KV client to the two distinct peers (master, replica) this
// system's client needs to reach.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotFound mirrors the teacher client's sentinel for a 404 response.
var ErrNotFound = fmt.Errorf("not found")

// APIError carries the HTTP status and server-reported message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// MasterClient talks to the cluster's coordinator.
type MasterClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMasterClient creates a MasterClient for baseURL (e.g. "http://localhost:8000").
func NewMasterClient(baseURL string, timeout time.Duration) *MasterClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &MasterClient{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// DocSummary is one entry of a document listing.
type DocSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// HomeReplica is where a client should connect to read or edit a document.
type HomeReplica struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// CreateDocResult is the reply to CreateDocAndConnect.
type CreateDocResult struct {
	DocID int64  `json:"docID"`
	Name  string `json:"name"`
	IP    string `json:"ip"`
	Port  string `json:"port"`
}

// CreateDocAndConnect creates a new document named name and returns the
// replica the client should connect to.
func (c *MasterClient) CreateDocAndConnect(ctx context.Context, name string) (*CreateDocResult, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createDocAndConnect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("createDocAndConnect: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result CreateDocResult
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// ConnectToExistingDoc asks the master which replica to use for an
// already-existing document.
func (c *MasterClient) ConnectToExistingDoc(ctx context.Context) (*HomeReplica, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connectToExistingDoc", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connectToExistingDoc: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result HomeReplica
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// LostConnection reports that ip:port is unreachable and asks for a new
// home replica.
func (c *MasterClient) LostConnection(ctx context.Context, ip, port string) (*HomeReplica, error) {
	body, _ := json.Marshal(map[string]string{"ip": ip, "port": port})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lostConnection", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lostConnection: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result HomeReplica
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// DocList returns every document known to the cluster.
func (c *MasterClient) DocList(ctx context.Context) ([]DocSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/docList", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docList: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var docs []DocSummary
	return docs, json.NewDecoder(resp.Body).Decode(&docs)
}

// EditConn is an open WebSocket session with a document's home replica.
type EditConn struct {
	conn *websocket.Conn
}

// DialEdit opens the client editing channel for (docID, docName) at
// replica baseURL (e.g. "ws://host:port"). editPerm tells the replica
// whether this client already holds the edit token from a previous
// connection (spec.md §4.6 reconnect semantics).
func DialEdit(ctx context.Context, baseURL string, docID int64, docName string, editPerm bool) (*EditConn, error) {
	url := fmt.Sprintf("%s/ws/%d/%s/%t", baseURL, docID, docName, editPerm)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial edit channel: %w", err)
	}
	return &EditConn{conn: conn}, nil
}

// ReadText blocks for the next text frame from the replica.
func (e *EditConn) ReadText() (string, error) {
	_, data, err := e.conn.ReadMessage()
	return string(data), err
}

// SendContent sends an in-progress edit of the document.
func (e *EditConn) SendContent(content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return e.conn.WriteMessage(websocket.TextMessage, body)
}

// StopEditing tells the replica the client is done editing, releasing the
// token back into circulation.
func (e *EditConn) StopEditing() error {
	return e.SendContent("*** STOP EDITING ***")
}

// Close closes the underlying WebSocket connection.
func (e *EditConn) Close() error {
	return e.conn.Close()
}

package replicaapi

import (
	"sync"

	"github.com/gorilla/websocket"
)

// connectionManager tracks the live client websockets watching each
// document, mirroring the original implementation's ConnectionManager.
type connectionManager struct {
	mu    sync.Mutex
	conns map[int64][]*websocket.Conn
}

func newConnectionManager() *connectionManager {
	return &connectionManager{conns: make(map[int64][]*websocket.Conn)}
}

func (c *connectionManager) add(docID int64, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[docID] = append(c.conns[docID], conn)
}

func (c *connectionManager) remove(docID int64, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.conns[docID]
	for i, cn := range list {
		if cn == conn {
			c.conns[docID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// broadcast sends content to every connection watching docID except
// skip (the connection that produced the update, if any).
func (c *connectionManager) broadcast(docID int64, content string, skip *websocket.Conn) {
	c.mu.Lock()
	targets := append([]*websocket.Conn(nil), c.conns[docID]...)
	c.mu.Unlock()

	for _, conn := range targets {
		if conn == skip {
			continue
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(content))
	}
}

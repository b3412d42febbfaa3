package replicaapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const stopEditingMarker = "*** STOP EDITING ***"
const startEditingMarker = "*** START EDITING ***"

type editMessage struct {
	Content string `json:"content"`
}

// ClientWebsocket handles GET /ws/:docID/:docName/:editPerm, the channel a
// client uses to view and edit one document (spec.md §4.6). editPerm=true
// means the client already held the edit token across a reconnect and
// should resume editing immediately rather than queue again.
func (h *Handler) ClientWebsocket(c *gin.Context) {
	docID, err := strconv.ParseInt(c.Param("docID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "docID must be an integer"})
		return
	}
	docName := c.Param("docName")
	editPerm := c.Param("editPerm") == "true"

	conn, err := h.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("replicaapi: client websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.conns.add(docID, conn)
	defer h.conns.remove(docID, conn)

	doc := h.docFromPath(docID, docName)

	if editPerm {
		conn.WriteMessage(websocket.TextMessage, []byte(startEditingMarker))
	}
	conn.WriteMessage(websocket.TextMessage, []byte(doc.Content))

	editing := false
	for {
		if editPerm {
			editing = true
			editPerm = false
		} else {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.onClientDisconnect(docID, editing)
				return
			}
			w := h.replica.Enqueue(docID)
			<-w.Granted
			editing = true
			if err := conn.WriteMessage(websocket.TextMessage, []byte(startEditingMarker)); err != nil {
				h.replica.StopEditing(docID)
				h.onClientDisconnect(docID, false)
				return
			}
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				h.onClientDisconnect(docID, editing)
				return
			}
			var msg editMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Content == stopEditingMarker {
				h.replica.StopEditing(docID)
				editing = false
				break
			}

			if _, err := h.replica.Docs().Update(docID, msg.Content); err != nil {
				log.Printf("replicaapi: update doc %d failed: %v", docID, err)
				continue
			}
			h.conns.broadcast(docID, msg.Content, conn)
			h.propagateToPeers(docID, docName, msg.Content)
		}
	}
}

func (h *Handler) onClientDisconnect(docID int64, wasEditing bool) {
	if err := h.replica.ReportLostClient(); err != nil {
		log.Printf("replicaapi: failed to report lost client: %v", err)
	}
	if wasEditing {
		h.replica.StopEditing(docID)
	}
}

// PeerWebsocket handles GET /replica/ws/:docID/:docName, the channel peers
// use to push a content update that was just serialized by the token on
// another replica (spec.md §4.7, best effort, advisory).
func (h *Handler) PeerWebsocket(c *gin.Context) {
	docID, err := strconv.ParseInt(c.Param("docID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "docID must be an integer"})
		return
	}
	docName := c.Param("docName")

	conn, err := h.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("replicaapi: peer websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.docFromPath(docID, docName)
	h.conns.add(docID, conn)
	defer h.conns.remove(docID, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg editMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if _, err := h.replica.Docs().Update(docID, msg.Content); err != nil {
			log.Printf("replicaapi: peer update doc %d failed: %v", docID, err)
			continue
		}
		h.conns.broadcast(docID, msg.Content, conn)
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("ack from replica %s", h.replica.Self())))
	}
}

// propagateToPeers fans a content update out to every other replica's
// /replica/ws endpoint. Each connection is opened, used once, and closed —
// matching connect_to_replica in the original implementation. A peer that
// cannot be reached is reported to the master and dropped from the local
// ring view.
func (h *Handler) propagateToPeers(docID int64, docName, content string) {
	for _, addr := range h.replica.Peers() {
		if addr == h.replica.Self() {
			continue
		}
		if err := h.sendToPeer(addr, docID, docName, content); err != nil {
			log.Printf("replicaapi: peer %s unreachable, reporting crash: %v", addr, err)
			h.replica.ReportCrash(addr)
			h.replica.RemoveCrashed(addr)
		}
	}
}

func (h *Handler) sendToPeer(addr string, docID int64, docName, content string) error {
	url := fmt.Sprintf("ws://%s/replica/ws/%d/%s", addr, docID, docName)
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	body, err := json.Marshal(editMessage{Content: content})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return err
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	return err
}

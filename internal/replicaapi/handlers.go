// Package replicaapi wires a replica's HTTP and WebSocket surface with Gin
// and gorilla/websocket: the token-transport endpoints from spec.md §4.4,
// plus the two WebSocket channels — client editing and peer content
// propagation — grounded on backend/replica/server.py's
// websocket_endpoint / replica_websocket_endpoint in the original
// implementation.
package replicaapi

import (
	"net/http"
	"strconv"

	"collabd/internal/docstore"
	"collabd/internal/replica"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler holds the dependencies injected from cmd/replica.
type Handler struct {
	replica *replica.Replica
	conns   *connectionManager
	upgrade websocket.Upgrader
}

// NewHandler creates a Handler bound to a replica's state.
func NewHandler(r *replica.Replica) *Handler {
	return &Handler{
		replica: r,
		conns:   newConnectionManager(),
		upgrade: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts every replica endpoint named in spec.md §6 on r.
func (h *Handler) Register(router *gin.Engine) {
	router.POST("/newDocID/:name", h.NewDocID)
	router.GET("/docList", h.DocList)
	router.POST("/updateServerList", h.UpdateServerList)
	router.POST("/initializeTokens", h.InitializeTokens)
	router.POST("/initializeToken/:docID/:serial", h.InitializeToken)
	router.POST("/recvToken/:docID/:serial", h.RecvToken)
	router.GET("/ws/:docID/:docName/:editPerm", h.ClientWebsocket)
	router.GET("/replica/ws/:docID/:docName", h.PeerWebsocket)
}

func parseInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

// NewDocID handles POST /newDocID/:name: allocate a fresh document and
// start tracking its edit queue.
func (h *Handler) NewDocID(c *gin.Context) {
	doc, err := h.replica.Docs().Create(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.replica.ReportNewDoc(doc.ID)
	c.JSON(http.StatusOK, gin.H{"docID": doc.ID})
}

// DocList handles GET /docList.
func (h *Handler) DocList(c *gin.Context) {
	c.JSON(http.StatusOK, h.replica.Docs().List())
}

// UpdateServerList handles POST /updateServerList. Body: ["ip:port", ...].
func (h *Handler) UpdateServerList(c *gin.Context) {
	var members []string
	if err := c.ShouldBindJSON(&members); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.replica.UpdateServerList(members)
	c.JSON(http.StatusOK, gin.H{"message": "server list updated"})
}

// InitializeTokens handles POST /initializeTokens: start forwarding one
// token per known document, each at serial 1.
func (h *Handler) InitializeTokens(c *gin.Context) {
	h.replica.InitializeTokens()
	c.JSON(http.StatusOK, gin.H{"message": "tokens initialized"})
}

// InitializeToken handles POST /initializeToken/:docID/:serial.
func (h *Handler) InitializeToken(c *gin.Context) {
	docID, ok := parseInt64(c, "docID")
	if !ok {
		return
	}
	serial, ok := parseInt64(c, "serial")
	if !ok {
		return
	}
	h.replica.InitializeToken(docID, serial)
	c.JSON(http.StatusOK, gin.H{"message": "token initialized"})
}

// RecvToken handles POST /recvToken/:docID/:serial, the entry point for a
// token arriving from a predecessor in the ring.
func (h *Handler) RecvToken(c *gin.Context) {
	docID, ok := parseInt64(c, "docID")
	if !ok {
		return
	}
	serial, ok := parseInt64(c, "serial")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"using": h.replica.RecvToken(docID, serial)})
}

// docFromPath resolves the document referenced by a websocket route,
// creating its local copy if this replica has never heard of it (bootstrap
// via peer propagation, spec.md §4.7).
func (h *Handler) docFromPath(docID int64, name string) docstore.Document {
	if d, ok := h.replica.Docs().Get(docID); ok {
		return d
	}
	d, err := h.replica.Docs().CreateWithID(docID, name)
	if err != nil {
		return docstore.Document{ID: docID, Name: name}
	}
	h.replica.ReportNewDoc(docID)
	return d
}

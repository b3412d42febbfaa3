// Package masterapi wires the master's HTTP surface with Gin, in the
// teacher's internal/api style: one Handler struct holding the injected
// dependency (the master's State), with Register mounting every route.
package masterapi

import (
	"net/http"
	"strconv"

	"collabd/internal/master"

	"github.com/gin-gonic/gin"
)

// Handler holds the master state injected from cmd/master.
type Handler struct {
	state *master.State
}

// NewHandler creates a Handler.
func NewHandler(s *master.State) *Handler {
	return &Handler{state: s}
}

// Register mounts every master endpoint named in spec.md §6 on r.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/addServer", h.AddServer)
	r.POST("/lostClient/:ip/:port", h.LostClient)
	r.POST("/lostConnection", h.LostConnection)
	r.POST("/createDocAndConnect", h.CreateDocAndConnect)
	r.POST("/connectToExistingDoc", h.ConnectToExistingDoc)
	r.GET("/docList", h.DocList)
	r.POST("/tokenInUse/:docID/:serial", h.TokenInUse)
	r.POST("/replicaRecvToken/:docID/:serial", h.ReplicaRecvToken)
	r.POST("/replicaCrashed/:ip/:port", h.ReplicaCrashed)
}

func parseInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

// AddServer handles POST /addServer?IP=&port=: a replica registering itself
// with the cluster at startup (spec.md §4.1).
func (h *Handler) AddServer(c *gin.Context) {
	ip := c.Query("IP")
	port := c.Query("port")
	if ip == "" || port == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "IP and port are required"})
		return
	}
	if err := h.state.Join(ip, port); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// LostClient handles POST /lostClient/:ip/:port: a replica reporting that a
// client disconnected, decrementing its load counter.
func (h *Handler) LostClient(c *gin.Context) {
	h.state.LostClient(c.Param("ip"), c.Param("port"))
	c.Status(http.StatusOK)
}

// LostConnection handles POST /lostConnection: a client reporting that its
// home replica is unreachable. Body: {"ip": "...", "port": "..."}.
func (h *Handler) LostConnection(c *gin.Context) {
	var body struct {
		IP   string `json:"ip" binding:"required"`
		Port string `json:"port" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ip, port, err := h.state.LostConnection(body.IP, body.Port)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "port": port})
}

// CreateDocAndConnect handles POST /createDocAndConnect. Body: {"name": "..."}.
func (h *Handler) CreateDocAndConnect(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.state.CreateDocAndConnect(body.Name)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"docID": result.DocID,
		"name":  result.Name,
		"ip":    result.IP,
		"port":  result.Port,
	})
}

// ConnectToExistingDoc handles POST /connectToExistingDoc.
func (h *Handler) ConnectToExistingDoc(c *gin.Context) {
	ip, port, err := h.state.ConnectExisting()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "port": port})
}

// DocList handles GET /docList, proxying to the leader replica.
func (h *Handler) DocList(c *gin.Context) {
	docs, err := h.state.DocList()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// TokenInUse handles POST /tokenInUse/:docID/:serial: the master pauses the
// token's liveness timer while a client holds it for editing.
func (h *Handler) TokenInUse(c *gin.Context) {
	docID, ok := parseInt64(c, "docID")
	if !ok {
		return
	}
	serial, ok := parseInt64(c, "serial")
	if !ok {
		return
	}
	h.state.TokenInUse(docID, serial)
	c.Status(http.StatusOK)
}

// ReplicaRecvToken handles POST /replicaRecvToken/:docID/:serial, the
// master-ack half of the two-phase token protocol (spec.md §4.5).
func (h *Handler) ReplicaRecvToken(c *gin.Context) {
	docID, ok := parseInt64(c, "docID")
	if !ok {
		return
	}
	serial, ok := parseInt64(c, "serial")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": h.state.ReplicaReceived(docID, serial)})
}

// ReplicaCrashed handles POST /replicaCrashed/:ip/:port: a replica reporting
// that it has detected a dead peer while trying to forward a token.
func (h *Handler) ReplicaCrashed(c *gin.Context) {
	h.state.ReplicaCrashed(c.Param("ip") + ":" + c.Param("port"))
	c.Status(http.StatusOK)
}

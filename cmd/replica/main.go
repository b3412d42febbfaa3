// cmd/replica is the entrypoint for a document replica node: it joins the
// cluster through the master, serves the token-transport and WebSocket
// surface for clients and peers, and persists documents to its own
// write-ahead log and snapshot store.
//
// Configuration mirrors the original implementation's environment
// variables (IP, PORT, MASTER_IP), with flag overrides for local testing.
//
// Example:
//
//	IP=127.0.0.1 PORT=9001 MASTER_IP=127.0.0.1 ./replica --data-dir /tmp/replica1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabd/internal/docstore"
	"collabd/internal/httpmw"
	"collabd/internal/replica"
	"collabd/internal/replicaapi"

	"github.com/gin-gonic/gin"
)

func main() {
	ip := flag.String("ip", envOr("IP", "127.0.0.1"), "This replica's advertised IP")
	port := flag.String("port", envOr("PORT", "9001"), "Listen port")
	masterIP := flag.String("master-ip", envOr("MASTER_IP", "127.0.0.1"), "Master's IP")
	masterPort := flag.String("master-port", envOr("MASTER_PORT", "8000"), "Master's port")
	dataDir := flag.String("data-dir", "/tmp/collabd-replica", "Directory for WAL and snapshots")
	snapshotEvery := flag.Duration("snapshot-interval", 60*time.Second, "How often to snapshot the document store")
	flag.Parse()

	selfAddr := fmt.Sprintf("%s:%s", *ip, *port)
	masterAddr := fmt.Sprintf("%s:%s", *masterIP, *masterPort)

	docs, err := docstore.New(fmt.Sprintf("%s/%s", *dataDir, *port))
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	defer docs.Close()

	r := replica.New(selfAddr, masterAddr, docs)
	for _, d := range docs.List() {
		r.ReportNewDoc(d.ID)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpmw.Logger(), httpmw.Recovery())

	handler := replicaapi.NewHandler(r)
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "self": selfAddr})
	})

	// No ReadTimeout/WriteTimeout: once gorilla/websocket hijacks a
	// connection on /ws/... or /replica/ws/..., those deadlines would
	// persist on the raw conn and kill an editing session that outlives
	// them (a waiter can block well past 10s while the token circulates).
	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("replica %s listening on :%s", selfAddr, *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Register with the master once the listener is up; retry a few times
	// in case the master is still starting.
	go func() {
		for attempt := 0; attempt < 5; attempt++ {
			if err := r.AnnounceSelf(); err == nil {
				return
			}
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
		log.Printf("replica %s: failed to announce to master %s", selfAddr, masterAddr)
	}()

	go func() {
		ticker := time.NewTicker(*snapshotEvery)
		defer ticker.Stop()
		for range ticker.C {
			if err := docs.Snapshot(); err != nil {
				log.Printf("snapshot error: %v", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down replica %s", selfAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := docs.Snapshot(); err != nil {
		log.Printf("final snapshot error: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

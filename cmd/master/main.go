// cmd/master is the entrypoint for the cluster's singleton coordinator: it
// owns membership, leader election, and the token liveness registry, and
// serves the master HTTP surface replicas and clients talk to.
//
// Example:
//
//	./master --addr :8000
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabd/internal/httpmw"
	"collabd/internal/master"
	"collabd/internal/masterapi"

	"github.com/gin-gonic/gin"
)

func main() {
	addr := flag.String("addr", envOr("ADDR", ":8000"), "Listen address (host:port)")
	flag.Parse()

	state := master.New()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpmw.Logger(), httpmw.Recovery())

	handler := masterapi.NewHandler(state)
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("master listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down master")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
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

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/agent"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	addr := cfg.StatusHost + ":" + cfg.StatusPort

	syncAgent, err := agent.New(cfg, agent.Options{})
	if err != nil {
		log.Fatalf("agent init error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := syncAgent.Start(ctx); err != nil {
		cancel()
		log.Fatalf("agent start error: %v", err)
	}
	cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           syncAgent.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := syncAgent.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("syncd listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

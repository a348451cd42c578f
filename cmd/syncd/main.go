package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fitsync/internal/api"
	"example.com/fitsync/internal/config"
	"example.com/fitsync/internal/domain"
	"example.com/fitsync/internal/persistence/sqlite"
	"example.com/fitsync/internal/remote"
	"example.com/fitsync/internal/syncer"
	httptransport "example.com/fitsync/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := remote.NewTokenSource(remote.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Subject:  cfg.UserID,
		TenantID: cfg.TenantID,
		TTL:      cfg.TokenTTL,
	})
	client := remote.NewClient(cfg.RemoteBaseURL, tokens)

	registry, err := syncer.NewRegistry(
		client.Repository("workouts"),
		client.Repository("routines"),
		client.Repository("exercises"),
	)
	if err != nil {
		log.Fatalf("handler registry: %v", err)
	}

	monitor := remote.NewMonitor(cfg.RemoteBaseURL+"/healthz", cfg.ProbeInterval)
	go monitor.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	var engine *syncer.Engine

	db, err := sqlite.Open(cfg.LocalDBPath)
	if err != nil {
		// Restrictive environments can deny local storage entirely. Stay up
		// and serve remote-only rather than crash the UI's backend.
		log.Printf("local storage unavailable, running remote-only: %v", err)
		api.NewDegradedHandler(registry).RegisterRoutes(mux)
	} else {
		defer db.Close()
		if db.ResetOnOpen() {
			log.Printf("WARNING: local schema upgrade failed; cache and unsynced changes were discarded")
		}

		store := sqlite.NewLocalStore(db)
		queue := sqlite.NewMutationQueue(db, cfg.MaxAttempts, cfg.BaseDelay)
		recorder := sqlite.NewRecorder(db)
		service := domain.NewService(recorder, store)

		engine = syncer.NewEngine(queue, registry, monitor, syncer.NewLogNotifier())
		go engine.Start(ctx)

		api.NewHandler(service, engine, queue, store).RegisterRoutes(mux)
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address: cfg.HTTPAddress,
	}, logger(mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("fitsync daemon listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if engine != nil {
		engine.Wait()
	}
}

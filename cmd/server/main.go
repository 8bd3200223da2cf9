package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"propguard/alert"
	"propguard/api"
	"propguard/config"
	"propguard/db"
	"propguard/featureflag"
	"propguard/manager"
	"propguard/notify"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ load config: %v", err)
	}

	flags := featureflag.NewRuntimeFlags(cfg.FlagState())

	var store alert.FlagStore
	var pgStore *db.FlagStore
	if cfg.DatabaseURL != "" && flags.PersistenceEnabled() {
		pgStore, err = db.NewFlagStore(cfg.DatabaseURL)
		if err != nil {
			log.Printf("⚠️  postgres flag store unavailable, falling back to memory: %v", err)
		} else {
			store = pgStore
			log.Printf("✓ Breach flags persisted to PostgreSQL")
		}
	}
	if store == nil {
		store = alert.NewMemStore(flags)
		log.Printf("✓ Breach flags held in memory")
	}

	sink := notify.NewAsyncSink(notify.LogSink{}, 64)

	m, err := manager.NewFromConfig(cfg, store, sink, flags)
	if err != nil {
		log.Fatalf("❌ build account manager: %v", err)
	}
	log.Printf("✓ Tracking %d account(s)", len(m.AccountIDs()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(m, cfg.APIServerPort)
	if err := server.Start(ctx); err != nil {
		log.Printf("❌ API server: %v", err)
	}

	// Shutdown order matters: stop accepting work, then drain the sink and
	// the persistence queue.
	sink.Close()
	if pgStore != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pgStore.Close(closeCtx); err != nil {
			log.Printf("⚠️  flag store close: %v", err)
		}
	}
	log.Println("⏹  Shutdown complete")
}

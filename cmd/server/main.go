package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjk/common/log"

	"mythkv/pkg/config"
	"mythkv/pkg/server"
	"mythkv/pkg/store"
	"mythkv/pkg/wal"
)

func main() {
	// Parse flags
	configPath := flag.String("config", config.DefaultPath, "Config file (JSON)")
	dataDir := flag.String("data", "", "Data directory (overrides config)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	syncMode := flag.String("sync", "", "Sync mode: none, batch or always (overrides config)")
	verbose := flag.Bool("v", false, "Log every request")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *syncMode != "" {
		if _, err := wal.ParseSyncMode(*syncMode); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -sync: %v\n", err)
			os.Exit(1)
		}
		cfg.SyncMode = *syncMode
	}
	if *verbose {
		cfg.Verbose = true
	}

	// without a log dir everything goes to stdout only
	if cfg.LogDir != "" {
		log.Init(&log.Config{Dir: cfg.LogDir})
	}
	log.Verbose = cfg.Verbose
	defer log.Close()

	// Recovery must finish before we accept traffic
	start := time.Now()
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		log.Errorf("failed to open store in %s: %v", cfg.DataDir, err)
		log.Close()
		os.Exit(1)
	}
	stats := st.Stats()
	log.Logf("recovered %d records (%d keys) from %s in %s, sync mode: %s\n",
		stats.Recovery.Records, stats.Keys, cfg.DataDir, time.Since(start), stats.SyncMode)

	srv := server.New(st, cfg.Addr, cfg.MaxValueSize)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Logf("shutting down...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.IfErrf(srv.Shutdown(ctx))
	}()

	if err := srv.Start(); err != nil {
		log.Errorf("server error: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Errorf("failed to close store: %v", err)
	}
}

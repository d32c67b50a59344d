package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pcbazaar/api"
	"pcbazaar/catalog"
	"pcbazaar/classify"
	"pcbazaar/config"
	"pcbazaar/httputil"
	"pcbazaar/ingest"
	"pcbazaar/logging"
	"pcbazaar/match"
	"pcbazaar/reconcile"
	"pcbazaar/scheduler"
	"pcbazaar/search"
	"pcbazaar/storage"
	"pcbazaar/workers"
)

var (
	ingestNow    = flag.Bool("ingest", false, "Run one ingest pass and exit")
	reconcileNow = flag.Bool("reconcile", false, "Drain pending listings and exit")
)

// store is the full persistence surface; both backends satisfy it.
type store interface {
	reconcile.Store
	ingest.Store
	api.Store
	catalog.PriceSource
	workers.MediaStore
	workers.AvailabilityStore
	workers.IndexStore
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting pcbazaar...")
	log.Printf("Loaded %d vendor configs", len(cfg.Vendors))
	for id, vendor := range cfg.Vendors {
		log.Printf("  - %s (%s, %s feed)", vendor.Name, id, vendor.Format)
	}

	ctx := context.Background()
	clients := httputil.NewClients(cfg.Classifier.Timeout)

	var st store
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Storage.DatabaseURL))
		st = pgStore
	default:
		liteStore, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		defer liteStore.Close()
		log.Printf("SQLite database: %s", cfg.Storage.SQLitePath)
		st = liteStore
	}

	matcher := match.New(cfg.Match.FloorThreshold)

	var classifier classify.Classifier
	if cfg.Classifier.Mode == "remote" {
		classifier = classify.NewRemote(cfg.Classifier.URL, clients.Classifier, cfg.Classifier.Timeout)
		log.Printf("Classifier: remote (%s)", cfg.Classifier.URL)
	} else {
		classifier = classify.NewHeuristic()
		log.Println("Classifier: heuristic")
	}

	aggregator := catalog.NewAggregator(st)
	engine := reconcile.NewEngine(st, matcher, classifier, cfg.Match.AutoThreshold)
	engine.OnResolve = aggregator.Invalidate

	ingester := ingest.NewService(st, clients.Feed, cfg.Vendors)

	// One-shot commands
	if *ingestNow {
		log.Println("Running ingest...")
		stats, err := ingester.RunAll(ctx)
		if err != nil {
			log.Fatalf("Ingest failed: %v", err)
		}
		log.Printf("Ingest complete: %d listings from %d vendors (%d skipped)",
			stats.Inserted, stats.Vendors, stats.Skipped)
		return
	}
	if *reconcileNow {
		log.Println("Running reconciliation...")
		for {
			run, err := engine.ProcessBatch(ctx, cfg.Workers.ReconcileBatchSize)
			if err != nil {
				log.Fatalf("Reconciliation failed: %v", err)
			}
			if run == nil {
				break
			}
			log.Printf("Run %d: processed=%d auto=%d escalated=%d created=%d errors=%d",
				run.ID, run.Processed, run.AutoMatched, run.Escalated, run.Created, run.Errors)
			if run.Processed < cfg.Workers.ReconcileBatchSize || run.Processed == run.Requeued {
				break
			}
		}
		log.Println("Reconciliation complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var searchIndex *search.Index
	if cfg.Search.URL != "" {
		searchIndex, err = search.NewIndex(cfg.Search.URL, cfg.Search.APIKey, cfg.Search.Index)
		if err != nil {
			log.Printf("Warning: search index unavailable: %v", err)
			searchIndex = nil
		} else {
			log.Printf("Search index: %s/%s", cfg.Search.URL, cfg.Search.Index)
		}
	}

	reconcileWorker := workers.NewReconcileWorker(engine)
	go reconcileWorker.Run(ctx, cfg.Workers.ReconcileBatchSize, cfg.Workers.ReconcileInterval)
	log.Println("Reconcile worker started")

	var uploader workers.Uploader = workers.NoOpUploader{}
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		})
		if err != nil {
			log.Printf("Warning: S3 uploader unavailable: %v", err)
		} else {
			uploader = s3up
			log.Printf("Media bucket: %s", cfg.S3.Bucket)
		}
	}
	mediaWorker := workers.NewMediaWorker(st, uploader, clients.Media)
	go mediaWorker.Run(ctx, cfg.Workers.MediaBatchSize, cfg.Workers.MediaInterval)
	log.Println("Media worker started")

	availabilityWorker := workers.NewAvailabilityWorker(st, clients.Probe, cfg.Workers.AvailabilityMaxAge)
	go availabilityWorker.Run(ctx, cfg.Workers.AvailabilityBatchSize, cfg.Workers.AvailabilityInterval)
	log.Println("Availability worker started")

	if searchIndex != nil {
		indexWorker := workers.NewIndexSyncWorker(st, searchIndex)
		go indexWorker.Run(ctx, cfg.Workers.IndexSyncInterval)
		log.Println("Index sync worker started")
	}

	sched := scheduler.New(cfg, ingester, reconcileWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := api.NewServer(cfg.API.Addr, st, aggregator, searchIndex, cfg.API.DefaultPageSize, cfg.API.MaxPageSize)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: API shutdown: %v", err)
	}
	log.Println("Goodbye!")
}

// maskConnectionString hides the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}

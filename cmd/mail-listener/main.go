package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pccmo/internal/config"
	"pccmo/internal/dedup"
	"pccmo/internal/listener"
	"pccmo/internal/pipeline"
	"pccmo/internal/sheets"
	"pccmo/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(cfg.DBPath, storage.WithLocation(cfg.Location()))
	must(err)
	defer db.Close()

	var syncer pipeline.SheetSyncer
	if svc := sheets.NewFromConfig(ctx, cfg, db); svc.Configured() {
		syncer = svc
	}
	ingest := pipeline.NewIngestService(db, dedup.NewGuard(db), syncer, cfg)

	svc := listener.NewService(db, cfg, pipeline.NewProcessingService(db, ingest))
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

package main

import (
	"Zyncrate/config"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/internal/repo"
	"Zyncrate/internal/storage"
	"Zyncrate/internal/worker"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config fail ", err)
	}
	db := repo.InitMysql(cfg)
	rdb := repo.InitRedis(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage, cfg.Storage.BucketName)
	if err != nil {
		log.Fatal("init storage fail ", err)
	}
	// the worker only runs deletions, so no dispatcher or expiry hints
	mgr := lifecycle.NewManager(lifecycle.Deps{
		Repo:      repo.NewFileRepo(db),
		Store:     store,
		Analytics: repo.NewAnalyticsRepo(db),
		Locker:    repo.NewRedisLocker(rdb),
	}, lifecycle.Options{DefaultExpiryHours: cfg.DefaultExpiryHours})

	log.Println("delete worker started")
	if err := worker.NewDeleteWorker(cfg, mgr).Run(ctx); err != nil {
		log.Fatalf("delete worker stopped: %v", err)
	}
	mgr.Drain()
}

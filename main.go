package main

import (
	"Zyncrate/config"
	"Zyncrate/internal/handler"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/internal/mq"
	"Zyncrate/internal/repo"
	"Zyncrate/internal/service"
	"Zyncrate/internal/storage"
	"Zyncrate/router"
	"Zyncrate/utils"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	listenerReadyTimeout = 5 * time.Second
	shutdownTimeout      = 10 * time.Second
)

// main initializes services and starts the HTTP server.
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
	publisher := mq.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()

	files := repo.NewFileRepo(db)
	guests := repo.NewGuestRepo(db)
	mgr := lifecycle.NewManager(lifecycle.Deps{
		Repo:       files,
		Store:      store,
		Analytics:  repo.NewAnalyticsRepo(db),
		Locker:     repo.NewRedisLocker(rdb),
		Dispatcher: publisher,
		Expiry:     repo.NewRedisExpiry(rdb),
	}, lifecycle.Options{DefaultExpiryHours: cfg.DefaultExpiryHours})

	if err := repo.EnableKeyspaceNotifications(ctx, rdb); err != nil {
		log.Printf("enable redis keyspace notifications failed: %v", err)
	} else {
		ready := make(chan struct{})
		go func() {
			err := repo.ListenRedisExpired(ctx, rdb, ready, func(ctx context.Context, key string) {
				if err := mgr.Expire(ctx, key); err != nil {
					log.Printf("[listener] expire %s: %v", key, err)
				}
			})
			if err != nil {
				log.Printf("[listener] stopped: %v", err)
			}
		}()
		select {
		case <-ready:
		case <-time.After(listenerReadyTimeout):
			log.Println("[listener] not ready, relying on the sweep")
		}
	}

	janitor := service.NewJanitor(mgr, guests, cfg.SweepBatch, cfg.OrphanGrace)
	janitor.Start(ctx, cfg.SweepInterval)

	h := handler.New(handler.Deps{
		Files:               mgr,
		Auth:                service.NewAuthService(repo.NewUserRepo(db), guests, cfg.JWTSecret, cfg.TokenTTL, cfg.GuestSessionTTL),
		Policy:              service.NewPolicyResolver(cfg.Limits, repo.NewSettingRepo(db), utils.NewRedisCache(rdb), cfg.SettingsCacheTTL),
		Cleaner:             janitor,
		Lister:              files,
		Notifier:            service.NewNotifier(cfg.SMTP, cfg.BaseURL),
		BaseURL:             cfg.BaseURL,
		DefaultMaxDownloads: cfg.DefaultMaxDownloads,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.InitRouter(cfg, h),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()
	log.Printf("listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	mgr.Drain()
}

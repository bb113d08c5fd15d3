package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/config"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/httpapi"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.PostgresDSN == "" {
		log.Fatal("AIRWAVE_PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Fall back to the in-process store when no Redis address is configured,
	// which keeps local development dependency-free. Production requires Redis
	// so revocation survives restarts and spans replicas.
	var kvStore kv.Store
	var redisStore *kv.Redis
	if cfg.RedisAddr != "" {
		redisStore = kv.NewRedis(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		kvStore = redisStore
	} else {
		if cfg.IsProduction() {
			log.Fatal("AIRWAVE_REDIS_ADDR is required in production")
		}
		kvStore = kv.NewMemory()
	}

	users := auth.NewPGStore(db)

	tokens, err := auth.NewTokenService(users, kvStore, cfg.AccessSecret, cfg.RefreshSecret,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithIssuer(cfg.Issuer),
		auth.WithAudience(cfg.Audience),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	perms := auth.NewPermissionService(users, kvStore)

	api := httpapi.New(httpapi.Options{
		Tokens:     tokens,
		Perms:      perms,
		Users:      users,
		ReadyProbe: httpapi.ReadyProbe{DB: db, KV: kvStore},
		Version:    version,
		Production: cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting airwave-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if redisStore != nil {
		_ = redisStore.Close()
	}
	_ = db.Close()
	log.Println("Stopped")
}

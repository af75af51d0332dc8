package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/natnael6825/ecctest/internal/config"
	internalhttp "github.com/natnael6825/ecctest/internal/http"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/session"
)

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
	)
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Printf("JWT_SECRET is empty; sessions will not survive a restart")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		client, err := services.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable (%v); using in-memory cache, sessions and lockout", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}
	cache := services.NewCache(rdb)
	sessions := session.NewStore(rdb)
	lockout := session.NewLockout(rdb, cfg.LockoutAttempts, cfg.LockoutWindow)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	h := internalhttp.NewRouter(ctx, cfg, cache, sessions, lockout)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Printf("commodity dashboard api listening on %s (cache=%s)", srv.Addr, cache.Backend())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

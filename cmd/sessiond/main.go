package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nailbliss/session/internal/config"
	domain "nailbliss/session/internal/domain/session"
	"nailbliss/session/internal/httpserver"
	"nailbliss/session/internal/infrastructure/gotrue"
	"nailbliss/session/internal/infrastructure/keychain"
	"nailbliss/session/internal/infrastructure/memory"
	"nailbliss/session/internal/infrastructure/postgres"
	"nailbliss/session/internal/infrastructure/redisstore"
	"nailbliss/session/internal/infrastructure/token"
	sessionusecase "nailbliss/session/internal/usecase/session"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	rootCtx := context.Background()

	store, closeStore, err := newKeyValueStore(rootCtx, cfg)
	if err != nil {
		log.Fatalf("failed to open remember-me store: %v", err)
	}
	defer closeStore()

	profiles, closeProfiles, err := newProfileStore(rootCtx, cfg)
	if err != nil {
		log.Fatalf("failed to open profile store: %v", err)
	}
	defer closeProfiles()

	auth := newBackend(cfg, store)

	manager := sessionusecase.NewManager(auth, profiles, store,
		sessionusecase.WithLogger(sessionusecase.NewStdLogger(cfg.Debug)),
		sessionusecase.WithOrigin(func() string { return cfg.AppOrigin }),
	)
	manager.Start(rootCtx)

	server := httpserver.NewServer(cfg, manager)
	log.Printf("HTTP server listening on %s (auth backend %s, remember store %s)", server.Addr(), cfg.AuthBackend, cfg.RememberStore)

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server closed: %v", err)
				return
			}
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v\n", err)
	}
	manager.Close()
	manager.Wait()
	log.Printf("graceful shutdown completed")
}

func newBackend(cfg config.Config, store domain.KeyValueStore) domain.AuthBackend {
	tokens := token.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthTokenExpiry, "nailbliss")
	if cfg.AuthBackend == config.BackendMemory {
		return memory.NewBackend(tokens)
	}
	return gotrue.NewClient(cfg.AuthURL, cfg.AuthAnonKey, tokens, store,
		gotrue.WithHTTPClient(&http.Client{Timeout: cfg.AuthTimeout}))
}

func newProfileStore(ctx context.Context, cfg config.Config) (domain.ProfileStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL not set; profiles are kept in memory")
		return memory.NewProfileStore(), func() {}, nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run database migrations: %w", err)
	}
	return postgres.NewProfileRepository(db.Pool), db.Close, nil
}

func newKeyValueStore(ctx context.Context, cfg config.Config) (domain.KeyValueStore, func(), error) {
	switch cfg.RememberStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return redisstore.New(client, cfg.RedisPrefix, 0), func() { _ = client.Close() }, nil
	case config.StoreMemory:
		return memory.NewKeyValueStore(), func() {}, nil
	}
	return keychain.NewStore(cfg.KeyringService), func() {}, nil
}

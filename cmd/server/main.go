package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/config"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/ingest"
	"github.com/Nixie-Tech-LLC/marquee/internal/logging"
	"github.com/Nixie-Tech-LLC/marquee/internal/mail"
	"github.com/Nixie-Tech-LLC/marquee/internal/playback"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// run owns every deferred close; main only reports its error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Environment)
	api.SetErrorDetail(!cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store := initStore(cfg)

	var cache *redis.ETagCache
	if cfg.RedisAddress != "" {
		rdb := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		defer rdb.Close()
		cache = redis.NewETagCache(rdb)
		if err := cache.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddress).Msg("redis unreachable, etag cache will miss until it recovers")
		}
	} else {
		log.Info().Msg("REDIS_ADDRESS not set, etag cache disabled")
	}

	ingester := playback.NewIngester(store)
	if cfg.MQTTBrokerURL != "" {
		sub := ingest.NewSubscriber(ingester)
		if err := sub.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID); err != nil {
			log.Error().Err(err).Msg("mqtt playback ingestion disabled")
		} else {
			defer sub.Close()
		}
	}

	var sender mail.Sender
	if cfg.SMTPConfigured() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			Recipient: cfg.QuoteRecipient,
		})
	} else {
		log.Info().Msg("SMTP not configured, quote requests will be refused")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, Deps{
		Config:   cfg,
		Store:    store,
		Cache:    cache,
		Files:    InitStorage(cfg),
		Ingester: ingester,
		Mailer:   sender,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.ServerAddress).Str("store", cfg.StoreDriver).Msg("listening")
	return serve(ctx, srv)
}

// serve runs srv until it fails or ctx is done, then shuts it down
// gracefully. A listen failure is returned, not logged fatally.
func serve(ctx context.Context, srv *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

// initStore connects the configured store, running migrations for postgres.
func initStore(cfg *config.Config) db.Store {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data will not survive a restart")
		return db.NewMemoryStore()
	}

	conn, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	return db.NewStore(conn)
}

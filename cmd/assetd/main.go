package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"assetd/pkg/bus"
	"assetd/pkg/db"
	"assetd/pkg/telemetry"
	"assetd/services/registry"
)

const serviceName = "assetd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := registry.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	var traceMiddleware func(http.Handler) http.Handler
	if cfg.OTLPEndpoint != "" {
		shutdown, middleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("init telemetry")
		}
		traceMiddleware = middleware
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store := registry.NewPGStore(pool)
	if err := store.SyncSequences(ctx); err != nil {
		log.Fatal().Err(err).Msg("sync identifier sequences")
	}

	var events *bus.Bus
	if cfg.NATSURL != "" {
		events, err = bus.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect bus")
		}
		defer events.Close()
	}

	svc, err := registry.NewService(store, events, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("build service")
	}

	if events != nil {
		subs, err := svc.ConsumeAssetCounts(ctx, events)
		if err != nil {
			log.Fatal().Err(err).Msg("subscribe asset counts")
		}
		defer func() {
			for _, sub := range subs {
				_ = sub.Close()
			}
		}()
	}

	api, err := registry.NewAPI(svc, store, cfg.DefaultActor)
	if err != nil {
		log.Fatal().Err(err).Msg("build api")
	}

	handler := api.Routes()
	if traceMiddleware != nil {
		handler = traceMiddleware(handler)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting assetd")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

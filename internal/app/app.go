package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wireroom-server/internal/config"
	"github.com/vovakirdan/wireroom-server/internal/core"
	wlog "github.com/vovakirdan/wireroom-server/internal/log"
	"github.com/vovakirdan/wireroom-server/internal/metrics"
	"github.com/vovakirdan/wireroom-server/internal/pubsub"
	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/store/memory"
	"github.com/vovakirdan/wireroom-server/internal/store/redis"
	"github.com/vovakirdan/wireroom-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wireroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	tls             bool
	certFile        string
	keyFile         string
	hub             *core.Hub
	store           store.ProfileStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg, wlog.Component(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", storeDriver(cfg)).Msg("profile store initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := core.NewHub(core.Options{
		TickInterval:  cfg.TickInterval,
		SaveInterval:  cfg.SaveInterval,
		SaveData:      cfg.SaveData,
		FallbackRoom:  cfg.FallbackRoom,
		IDSalt:        cfg.IDSalt,
		CustomIDLimit: cfg.CustomIDLimit,
		RandomIDs:     cfg.RandomIDs,
		Metrics:       m,
	}, pubsub.NewBroker(), st, wlog.Component(logger, "hub"))

	server := transporthttp.NewServer(hub, cfg, wlog.Component(logger, "http"), transporthttp.Deps{
		Metrics:  m,
		Gatherer: reg,
	})

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		tls:             cfg.TLS(),
		certFile:        cfg.TLSCertFile,
		keyFile:         cfg.TLSKeyFile,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore opens the profile store selected by cfg. With save_data off
// profiles live only in memory. logger may be nil.
func OpenStore(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (store.ProfileStore, error) {
	switch storeDriver(cfg) {
	case config.StoreSQLite:
		return sqlite.New(cfg.DatabasePath)
	case config.StoreRedis:
		return redis.New(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey, logger)
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func storeDriver(cfg config.Config) string {
	if !cfg.SaveData {
		return config.StoreMemory
	}
	return cfg.StoreDriver
}

// Run loads profiles, starts the hub and the HTTP server, and blocks until
// ctx is cancelled or the server fails. The HTTP server stops accepting
// first; the hub then disconnects every client and saves profiles.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.hub.Load(ctx); err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.hub.Run(hubCtx)
	})
	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Bool("tls", a.tls).Msg("http server listening")
		if err := a.listen(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopHub()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) listen() error {
	if a.tls {
		return a.server.ListenAndServeTLS(a.certFile, a.keyFile)
	}
	return a.server.ListenAndServe()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireroom-server/internal/app"
	"github.com/vovakirdan/wireroom-server/internal/config"
	wlog "github.com/vovakirdan/wireroom-server/internal/log"
)

// flagOverrides holds CLI values; only flags the user set are applied.
type flagOverrides struct {
	configPath   string
	addr         string
	logLevel     string
	storeDriver  string
	databasePath string
	redisAddr    string
	tickInterval time.Duration
	fallbackRoom string
	idSalt       string
	proxied      bool
	randomIDs    bool
	saveData     bool
}

func serveCmd() *cobra.Command {
	var f flagOverrides

	cmd := &cobra.Command{
		Use:   "wireroom-server",
		Short: "Real-time multi-room presence server",
		Long: `wireroom-server hosts named rooms over a binary WebSocket protocol.

Members see each other's cursor and profile, chat, relay note events and
contend for a per-room crown. Changes are broadcast on a fixed tick.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&f.configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&f.storeDriver, "store", "", "profile store: sqlite, redis or memory")
	flags.StringVar(&f.databasePath, "db", "", "sqlite database path")
	flags.StringVar(&f.redisAddr, "redis-addr", "", "redis address")
	cmd.Flags().DurationVar(&f.tickInterval, "tick", 0, "broadcast tick interval")
	cmd.Flags().StringVar(&f.fallbackRoom, "fallback-room", "", "room banned members are moved to")
	cmd.Flags().StringVar(&f.idSalt, "id-salt", "", "salt for address-derived identities")
	cmd.Flags().BoolVar(&f.proxied, "proxied", false, "trust the real IP header")
	cmd.Flags().BoolVar(&f.randomIDs, "random-ids", false, "give every handshake a random identity")
	cmd.Flags().BoolVar(&f.saveData, "save-data", true, "persist profiles")

	return cmd
}

// loadConfig resolves file and env configuration, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, f flagOverrides) (config.Config, error) {
	bootLogger := wlog.New("info")
	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return cfg, err
	}
	bootLogger.Debug().Str("path", path).Msg("config loaded")

	cfg.UpdateFrom(config.Config{
		Addr:         f.addr,
		LogLevel:     f.logLevel,
		StoreDriver:  f.storeDriver,
		DatabasePath: f.databasePath,
		RedisAddr:    f.redisAddr,
		TickInterval: f.tickInterval,
		FallbackRoom: f.fallbackRoom,
		IDSalt:       f.idSalt,
	})
	changed := cmd.Flags().Changed
	if changed("proxied") {
		cfg.Proxied = f.proxied
	}
	if changed("random-ids") {
		cfg.RandomIDs = f.randomIDs
	}
	if changed("save-data") {
		cfg.SaveData = f.saveData
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := wlog.New(cfg.LogLevel)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting wireroom server")
	if err := application.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"log/slog"
	"time"

	"github.com/GrainArc/GlebaMap/config"
	"github.com/GrainArc/GlebaMap/logger"
	"github.com/GrainArc/GlebaMap/services"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const collectionTTL = 10 * time.Minute

type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "glebamap",
		Short:         "Gestão de glebas: servidor HTTP e ferramentas de manutenção",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.xml", "path to config.xml")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newCleanupCommand(opts))
	return cmd
}

// app 各子命令共用的依赖
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *gorm.DB
	rdb *redis.Client
	svc *services.GlebaService
}

func openApp(opts *rootOptions) (*app, error) {
	log := logger.Setup()
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}

	svcOpts := []services.Option{services.WithLogger(log), services.WithWorkDir(cfg.Download)}
	if a.rdb = services.OpenRedis(cfg.RedisAddr, cfg.RedisPassword); a.rdb != nil {
		svcOpts = append(svcOpts, services.WithCache(services.NewRedisCache(a.rdb, collectionTTL)))
		log.Info("redis_cache_enabled", "addr", cfg.RedisAddr)
	}
	a.svc = services.NewGlebaService(db, svcOpts...)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"winledger/config"
	"winledger/database"
	"winledger/jobs"
	"winledger/logger"
	"winledger/routes"
	"winledger/services"

	"go.uber.org/zap"
)

func main() {
	envErr := config.LoadDotEnv()
	log := logger.New(config.AppEnv())
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Warn("no .env file loaded, using process environment", zap.Error(envErr))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	opts := []services.Option{services.WithLogger(log.Named("engine"))}
	rdb, err := database.ConnectRedis(context.Background(), cfg)
	switch {
	case err != nil:
		log.Warn("redis unavailable, cooldowns fall back to the ledger", zap.Error(err))
	case rdb != nil:
		opts = append(opts, services.WithCooldown(services.NewRedisCooldown(rdb)))
		defer func() { _ = rdb.Close() }()
	}

	engine := services.New(db, cfg, opts...)

	app := routes.NewApp()
	routes.Setup(app, engine, log.Named("http"))

	scheduler, err := jobs.NewScheduler(engine, cfg, log)
	if err != nil {
		log.Fatal("failed to register jobs", zap.Error(err))
	}
	scheduler.Start()

	addr := cfg.Addr()
	log.Info("server running", zap.String("addr", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panic("failed to start server", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info("gracefully shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop(ctx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server exited cleanly")
}

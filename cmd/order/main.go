package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/articleshop/pkg/app"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/discovery"
	"github.com/example/articleshop/pkg/grpc"
	"github.com/example/articleshop/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	application, err := app.New(cfg, logger, cfg.Server.Name)
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}

	ctx := context.Background()
	if err := application.Store.Ping(ctx); err != nil {
		logger.Warn("Store ping failed", zap.Error(err))
	}

	server := grpc.NewOrderServer(cfg, application.Orders, logger)

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
	if err != nil {
		logger.Fatal("Failed to connect to etcd", zap.Error(err))
	}
	defer sd.Close()

	registration, err := sd.Register(ctx, &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		logger.Fatal("Failed to register service", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := registration.Deregister(shutdownCtx); err != nil {
		logger.Error("Failed to deregister service", zap.Error(err))
	}
	server.Stop()
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close services", zap.Error(err))
	}

	logger.Info("Service stopped")
}

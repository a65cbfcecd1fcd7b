package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/articleshop/gateway"
	"github.com/example/articleshop/pkg/app"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/discovery"
	"github.com/example/articleshop/pkg/logging"
	"github.com/example/articleshop/pkg/payment"
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

	logger.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host),
		zap.String("store", cfg.Store.Driver))

	application, err := app.New(cfg, logger, cfg.Gateway.Name)
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}

	ctx := context.Background()
	if err := application.Store.Ping(ctx); err != nil {
		logger.Warn("Store ping failed", zap.Error(err))
	}

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("Stripe secret key not set, payment sheet requests will fail")
	}
	payments := payment.NewBootstrap(
		payment.NewStripeProcessor(cfg.Stripe.SecretKey),
		cfg.Stripe.PublishableKey,
		cfg.Stripe.APIVersion,
		logger.Named("payment"))

	gw := gateway.NewGateway(cfg, logger, gateway.Services{
		Orders:   application.Orders,
		Catalog:  application.Catalog,
		Identity: application.Identity,
		Payments: payments,
	})
	gw.SetupRoutes()

	var registration *discovery.Registration
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
			registration, err = sd.Register(ctx, &discovery.ServiceInstance{
				Name: cfg.Gateway.Name,
				Host: cfg.Gateway.Host,
				Port: cfg.Gateway.Port,
			})
			if err != nil {
				logger.Warn("Failed to register gateway", zap.Error(err))
			}
		}
	}

	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	logger.Info("Gateway started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if registration != nil {
		if err := registration.Deregister(shutdownCtx); err != nil {
			logger.Error("Failed to deregister gateway", zap.Error(err))
		}
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close services", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}

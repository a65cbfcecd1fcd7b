// Package app wires the store, the audit recorder and the domain services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/articleshop/pkg/audit"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/repository"
	"github.com/example/articleshop/pkg/resolver"
	"github.com/example/articleshop/pkg/service"
	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    repository.Store
	Audit    *audit.Recorder
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Identity *service.IdentityService
}

// New opens the configured store and builds the services on top of it. name is recorded as
// the service on audit entries.
func New(cfg *config.Config, logger *zap.Logger, name string) (*App, error) {
	store, err := repository.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder, err := audit.NewRecorder(name, auditSink(store, logger), logger.Named("audit"))
	if err != nil {
		_ = store.Close(context.Background())
		return nil, fmt.Errorf("failed to start audit recorder: %w", err)
	}

	res := resolver.New(store, logger.Named("resolver"))
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Audit:    recorder,
		Orders:   service.NewOrderService(store, store, res, recorder, logger.Named("orders")),
		Catalog:  service.NewCatalogService(store, logger.Named("catalog")),
		Identity: service.NewIdentityService(store, logger.Named("identity")),
	}, nil
}

// auditSink writes to the MongoDB audit collection when Mongo is the store, else to the log.
func auditSink(store repository.Store, logger *zap.Logger) audit.Sink {
	if mongo, ok := repository.Unwrap(store).(*repository.MongoRepository); ok {
		return mongo
	}
	return audit.LogSink{Logger: logger.Named("audit")}
}

// AuditLogs reads back audit entries. Only the MongoDB store keeps them.
func (a *App) AuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error) {
	mongo, ok := repository.Unwrap(a.Store).(*repository.MongoRepository)
	if !ok {
		return nil, errors.New("audit logs are only stored with the mongo driver")
	}
	return mongo.GetAuditLogs(ctx, entityID, limit)
}

// Close flushes pending audit events before closing the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Audit.Close(), a.Store.Close(ctx))
}

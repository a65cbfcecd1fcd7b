// Command verify runs an order round trip against the configured store and removes what it created.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/articleshop/pkg/app"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/grpc"
	"github.com/example/articleshop/pkg/logging"
	"github.com/example/articleshop/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	orderAddr := flag.String("order-addr", "", "also read the order back through the gRPC order service at this address")
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

	application, err := app.New(cfg, logger, "verify")
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}

	var remote *grpc.OrderClient
	if *orderAddr != "" {
		remote, err = grpc.Dial(context.Background(), cfg.Server.Name, *orderAddr, nil, logger)
		if err != nil {
			logger.Fatal("Failed to connect to order service", zap.Error(err))
		}
		defer remote.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = run(ctx, application, remote)
	cancel()

	if closeErr := application.Close(context.Background()); closeErr != nil {
		logger.Error("Failed to close services", zap.Error(closeErr))
	}
	if err != nil {
		logger.Error("Verification failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Verification passed")
}

// run creates a user, an article and an order, checks that the order resolves to the article,
// and deletes all three whatever the outcome. When remote is set the order is also read through it.
func run(ctx context.Context, a *app.App, remote *grpc.OrderClient) (err error) {
	log := a.Logger
	suffix := uuid.NewString()

	user, err := a.Identity.RegisterUser(ctx, models.NewUser{
		ExternalSubjectID: "verify_" + suffix,
		Email:             "verify+" + suffix[:8] + "@example.com",
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	defer func() {
		err = errors.Join(err, a.Identity.DeleteUser(context.Background(), user.ID))
	}()
	log.Info("Created user", zap.String("id", user.ID))

	price := 1234.0
	article, err := a.Catalog.CreateArticle(ctx, models.NewArticle{
		Title:     "Verification article " + suffix[:8],
		Price:     &price,
		ImageFile: "verify.png",
	})
	if err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	defer func() {
		err = errors.Join(err, a.Catalog.DeleteArticle(context.Background(), article.ID))
	}()
	log.Info("Created article", zap.String("id", article.ID))

	order, err := a.Orders.CreateOrder(ctx, user.ID, []models.ItemInput{{ArticleID: article.ID, Quantity: 2}})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	defer func() {
		err = errors.Join(err, a.Orders.DeleteOrder(context.Background(), order.ID))
	}()
	log.Info("Created order", zap.String("id", order.ID))

	resolved, err := a.Orders.GetOrder(ctx, order.ID, a.Config.Server.PublicURL)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if len(resolved.Items) != 1 || resolved.Items[0].Article == nil {
		return errors.New("order item did not resolve to its article")
	}
	if got := resolved.Items[0].Article.Title; got != article.Title {
		return fmt.Errorf("resolved title %q, want %q", got, article.Title)
	}
	log.Info("Order resolved", zap.String("title", resolved.Items[0].Article.Title),
		zap.Stringp("image_url", resolved.Items[0].Article.ImageURL))

	if remote != nil {
		resp, err := remote.GetOrder(ctx, &grpc.GetOrderRequest{ID: order.ID})
		if err != nil {
			return fmt.Errorf("get order over gRPC: %w", err)
		}
		if len(resp.Order.Items) != 1 || resp.Order.Items[0].Article == nil {
			return errors.New("order read over gRPC did not resolve to its article")
		}
		log.Info("Order read over gRPC", zap.String("status", resp.Order.Status))
	}

	if a.Config.Store.Driver == config.DriverMongo {
		// Audit writes are asynchronous.
		time.Sleep(500 * time.Millisecond)
		logs, err := a.AuditLogs(ctx, order.ID, 10)
		if err != nil {
			return fmt.Errorf("read audit logs: %w", err)
		}
		log.Info("Audit entries", zap.Int("count", len(logs)))
	}
	return nil
}

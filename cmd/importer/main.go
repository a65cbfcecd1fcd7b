// Command importer loads catalog articles from a JSON file of
// [{"title", "description", "price", "image", "glb"}] objects.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/example/articleshop/pkg/app"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/logging"
	"github.com/example/articleshop/pkg/models"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	file := flag.String("file", "products.json", "JSON file with the articles to import")
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

	articles, err := readArticles(*file)
	if err != nil {
		logger.Fatal("Failed to read articles", zap.String("file", *file), zap.Error(err))
	}

	application, err := app.New(cfg, logger, "importer")
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}
	ctx := context.Background()
	defer application.Close(ctx)

	imported := 0
	for i, in := range articles {
		article, err := application.Catalog.CreateArticle(ctx, in)
		if err != nil {
			logger.Error("Failed to import article", zap.Int("index", i), zap.String("title", in.Title), zap.Error(err))
			continue
		}
		imported++
		logger.Info("Imported article", zap.String("id", article.ID), zap.String("title", article.Title))
	}

	logger.Info("Import finished", zap.Int("imported", imported), zap.Int("total", len(articles)))
	if imported < len(articles) {
		application.Close(ctx)
		os.Exit(1)
	}
}

func readArticles(path string) ([]models.NewArticle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var articles []models.NewArticle
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return articles, nil
}

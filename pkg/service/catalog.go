package service

import (
	"context"
	"time"

	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogService struct {
	articles repository.ArticleStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewCatalogService(articles repository.ArticleStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{articles: articles, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// RoundPrice rounds a possibly fractional minor-unit price to the nearest integer, halves up.
func RoundPrice(price float64) int64 {
	return decimal.NewFromFloat(price).Round(0).IntPart()
}

func (s *CatalogService) CreateArticle(ctx context.Context, in models.NewArticle) (*models.Article, error) {
	if err := validateStruct(in, ""); err != nil {
		return nil, err
	}

	article := &models.Article{
		ID:          models.NewID(),
		Title:       in.Title,
		Description: in.Description,
		Price:       RoundPrice(*in.Price),
		ImageFile:   in.ImageFile,
		ModelFile:   in.ModelFile,
		CreatedAt:   s.now(),
	}
	if err := s.articles.CreateArticle(ctx, article); err != nil {
		s.logger.Error("Failed to create article", zap.String("title", in.Title), zap.Error(err))
		return nil, err
	}
	return article, nil
}

func (s *CatalogService) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	if err := requireID("articleId", id); err != nil {
		return nil, err
	}
	return s.articles.FindArticle(ctx, id)
}

func (s *CatalogService) ListArticles(ctx context.Context) ([]*models.Article, error) {
	return s.articles.ListArticles(ctx)
}

// DeleteArticle removes the article only. Orders that reference it keep the dangling id.
func (s *CatalogService) DeleteArticle(ctx context.Context, id string) error {
	if err := requireID("articleId", id); err != nil {
		return err
	}
	return s.articles.DeleteArticle(ctx, id)
}

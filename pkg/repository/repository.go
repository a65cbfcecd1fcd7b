package repository

import (
	"context"

	"github.com/example/articleshop/pkg/models"
)

// ArticleStore is the catalog. Lookups of missing articles return apperror.NotFound,
// except FindArticles which simply omits them.
type ArticleStore interface {
	CreateArticle(ctx context.Context, article *models.Article) error
	FindArticle(ctx context.Context, id string) (*models.Article, error)
	FindArticles(ctx context.Context, ids []string) (map[string]*models.Article, error)
	ListArticles(ctx context.Context) ([]*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

// UserStore holds users. ExternalSubjectID is unique; CreateUser returns apperror.Conflict on a duplicate.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserBySubject(ctx context.Context, subject string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// OrderFilter narrows FindOrders. The zero value matches every order.
type OrderFilter struct {
	UserID string
}

// OrderStore holds orders. UpdateOrder applies only the fields present in the update, in a
// single-record write, and returns the stored order after the write.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, id string, update models.OrderUpdate) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

type Store interface {
	ArticleStore
	UserStore
	OrderStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

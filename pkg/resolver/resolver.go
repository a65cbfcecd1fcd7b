// Package resolver turns stored orders into their client representation: article ids are
// replaced by copies of the articles and stored asset filenames become absolute URLs.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/articleshop/pkg/models"
	"go.uber.org/zap"
)

const (
	imagePath = "/articles/image/"
	modelPath = "/articles/glb/"
)

// ArticleLookup is the part of the catalog the resolver reads. Missing ids are absent from the result.
type ArticleLookup interface {
	FindArticles(ctx context.Context, ids []string) (map[string]*models.Article, error)
}

// Article is an article with asset URLs in place of filenames. A nil URL means no asset is stored.
type Article struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	ImageURL    *string   `json:"imageUrl"`
	GlbURL      *string   `json:"glbUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Item is a resolved line item. Article is nil when the referenced article no longer exists.
type Item struct {
	ArticleID string   `json:"articleId"`
	Article   *Article `json:"article"`
	Quantity  int      `json:"quantity"`
}

type Order struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Resolver struct {
	articles ArticleLookup
	logger   *zap.Logger
}

func New(articles ArticleLookup, logger *zap.Logger) *Resolver {
	return &Resolver{articles: articles, logger: logger}
}

// Resolve resolves a single order against authority (scheme://host).
func (r *Resolver) Resolve(ctx context.Context, order *models.Order, authority string) (*Order, error) {
	resolved, err := r.ResolveAll(ctx, []*models.Order{order}, authority)
	if err != nil {
		return nil, err
	}
	return resolved[0], nil
}

// ResolveAll resolves orders with one catalog lookup for all referenced articles.
// A dangling reference yields a nil article for that item only; a failing lookup fails the call.
func (r *Resolver) ResolveAll(ctx context.Context, orders []*models.Order, authority string) ([]*Order, error) {
	ids := referencedArticles(orders)
	articles := map[string]*models.Article{}
	if len(ids) > 0 {
		found, err := r.articles.FindArticles(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("lookup articles: %w", err)
		}
		articles = found
	}

	result := make([]*Order, len(orders))
	for i, o := range orders {
		items := make([]Item, len(o.Items))
		for j, it := range o.Items {
			items[j] = Item{ArticleID: it.ArticleID, Quantity: it.Quantity}
			a, ok := articles[it.ArticleID]
			if !ok {
				r.logger.Debug("dangling article reference",
					zap.String("order_id", o.ID),
					zap.String("article_id", it.ArticleID))
				continue
			}
			items[j].Article = ResolveArticle(a, authority)
		}
		result[i] = &Order{
			ID:        o.ID,
			UserID:    o.UserID,
			Items:     items,
			Status:    o.Status,
			CreatedAt: o.CreatedAt,
		}
	}
	return result, nil
}

// ResolveArticle copies a into its client representation.
func ResolveArticle(a *models.Article, authority string) *Article {
	return &Article{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Price:       a.Price,
		ImageURL:    AssetURL(authority, imagePath, a.ImageFile),
		GlbURL:      AssetURL(authority, modelPath, a.ModelFile),
		CreatedAt:   a.CreatedAt,
	}
}

// AssetURL builds {authority}{path}{escaped filename}, or nil when filename is empty.
func AssetURL(authority, path, filename string) *string {
	if filename == "" {
		return nil
	}
	u := strings.TrimRight(authority, "/") + path + escapeComponent(filename)
	return &u
}

// escapeComponent escapes a filename as a single path segment, including '/', '?' and '#'.
// Only letters, digits and -_.!~*'() are left as is; every other byte is %XX encoded.
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepUnescaped(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func keepUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

func referencedArticles(orders []*models.Order) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ArticleID]; ok {
				continue
			}
			seen[it.ArticleID] = struct{}{}
			ids = append(ids, it.ArticleID)
		}
	}
	return ids
}

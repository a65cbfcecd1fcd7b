package gateway

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/resolver"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) createArticle(c *gin.Context) {
	var req models.NewArticle
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	article, err := g.services.Catalog.CreateArticle(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resolver.ResolveArticle(article, requestAuthority(c)))
}

func (g *Gateway) listArticles(c *gin.Context) {
	articles, err := g.services.Catalog.ListArticles(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}

	authority := requestAuthority(c)
	resolved := make([]*resolver.Article, len(articles))
	for i, a := range articles {
		resolved[i] = resolver.ResolveArticle(a, authority)
	}
	c.JSON(http.StatusOK, resolved)
}

func (g *Gateway) getArticle(c *gin.Context) {
	article, err := g.services.Catalog.GetArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resolver.ResolveArticle(article, requestAuthority(c)))
}

func (g *Gateway) deleteArticle(c *gin.Context) {
	if err := g.services.Catalog.DeleteArticle(c.Request.Context(), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// serveAsset serves stored asset files from a subdirectory of the assets dir. The filename is
// store-relative and may contain '/'; it is cleaned as a rooted path so it cannot leave that directory.
func (g *Gateway) serveAsset(subdir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("file")
		rel := path.Clean("/" + name)
		file := filepath.Join(g.config.Assets.Dir, subdir, filepath.FromSlash(rel))

		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			g.fail(c, apperror.NotFound("asset", name))
			return
		}
		c.File(file)
	}
}

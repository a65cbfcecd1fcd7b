package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/payment"
	"github.com/example/articleshop/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the domain operations exposed over HTTP.
type Services struct {
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Identity *service.IdentityService
	Payments *payment.Bootstrap
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Asset filenames may contain an escaped '/', which must match a single :file segment.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := authMiddleware(g.config.Auth, g.logger)

	orders := g.router.Group("/orders")
	{
		orders.POST("/payment-sheet", g.createPaymentSheet)
		orders.GET("/all", g.listAllOrders)
		orders.GET("/:id", g.getOrder)
		orders.PATCH("/:id", g.updateOrder)
		orders.GET("", auth, g.listMyOrders)
		orders.POST("", auth, g.createOrder)
	}

	articles := g.router.Group("/articles")
	{
		articles.GET("/image/:file", g.serveAsset("images"))
		articles.GET("/glb/:file", g.serveAsset("glb"))
		articles.POST("", g.createArticle)
		articles.GET("", g.listArticles)
		articles.GET("/:id", g.getArticle)
		articles.DELETE("/:id", g.deleteArticle)
	}

	users := g.router.Group("/users", auth)
	{
		users.POST("", g.registerUser)
		users.GET("/me", g.getMe)
	}
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Gateway.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// requestAuthority is the scheme://host the client used, honouring a TLS-terminating proxy.
func requestAuthority(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}

	body := gin.H{"error": apperror.Public(err)}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.AbortWithStatusJSON(status, body)
}

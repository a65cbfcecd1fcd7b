package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey  = "request_id"
	subjectKey    = "subject"
	requestHeader = "X-Request-ID"
)

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(requestHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestHeader, requestID)

		c.Next()

		logger.Info("HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// authMiddleware accepts an HS256 bearer token and stores its subject in the context.
// The subject is the identity provider's user id.
func authMiddleware(cfg config.AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		subject, err := bearerSubject(parser, secret, c.GetHeader("Authorization"))
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Could not find user"})
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

func bearerSubject(parser *jwt.Parser, secret []byte, header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", apperror.Unauthorized("missing bearer token")
	}
	if len(secret) == 0 {
		return "", errors.New("no signing secret configured")
	}

	token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", apperror.Unauthorized("token has no subject")
	}
	return subject, nil
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/payment"
	"github.com/example/articleshop/pkg/repository"
	"github.com/example/articleshop/pkg/resolver"
	"github.com/example/articleshop/pkg/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type stubProcessor struct {
	amount int64
	err    error
}

func (s *stubProcessor) CreateCustomer(context.Context, string) (string, error) {
	return "cus_123", s.err
}

func (s *stubProcessor) CreateEphemeralKey(context.Context, string, string) (string, error) {
	return "ek_123", nil
}

func (s *stubProcessor) CreatePaymentIntent(_ context.Context, amount int64, _, _ string) (string, error) {
	s.amount = amount
	return "pi_123_secret", nil
}

type testEnv struct {
	handler   http.Handler
	repo      *repository.MemoryRepository
	catalog   *service.CatalogService
	identity  *service.IdentityService
	processor *stubProcessor
	assets    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := repository.NewMemoryRepository()
	proc := &stubProcessor{}

	cfg := &config.Config{
		Auth:   config.AuthConfig{JWTSecret: testSecret},
		Assets: config.AssetsConfig{Dir: t.TempDir()},
	}
	services := Services{
		Orders:   service.NewOrderService(repo, repo, resolver.New(repo, logger), nil, logger),
		Catalog:  service.NewCatalogService(repo, logger),
		Identity: service.NewIdentityService(repo, logger),
		Payments: payment.NewBootstrap(proc, "pk_test", "2025-04-30.basil", logger),
	}
	gw := NewGateway(cfg, logger, services)
	gw.SetupRoutes()

	return &testEnv{
		handler:   gw.Handler(),
		repo:      repo,
		catalog:   services.Catalog,
		identity:  services.Identity,
		processor: proc,
		assets:    cfg.Assets.Dir,
	}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path string, body any, subject string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = "api.example.com"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, subject string) (*models.User, *models.Article) {
	t.Helper()
	ctx := context.Background()
	u, err := e.identity.RegisterUser(ctx, models.NewUser{ExternalSubjectID: subject, Email: "a@b.com"})
	require.NoError(t, err)
	a, err := e.catalog.CreateArticle(ctx, models.NewArticle{Title: "Lamp", Price: price(19.6), ImageFile: "a.png"})
	require.NoError(t, err)
	return u, a
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAndReadOrder(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")

	rec := env.do(t, http.MethodPost, "/orders", obj{"items": []obj{{"articleId": article.ID, "quantity": 2}}}, "user_1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Order](t, rec)
	assert.Equal(t, "pending", created.Status)
	assert.Len(t, created.Items, 1)

	rec = env.do(t, http.MethodGet, "/orders/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[resolver.Order](t, rec)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Article)
	assert.Equal(t, int64(20), got.Items[0].Article.Price)
	assert.Equal(t, "https://api.example.com/articles/image/a.png", *got.Items[0].Article.ImageURL)
	assert.Nil(t, got.Items[0].Article.GlbURL)
}

func TestCreateOrderErrors(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")

	rec := env.do(t, http.MethodPost, "/orders", obj{"items": []obj{}}, "user_1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", obj{"items": []obj{{"articleId": article.ID, "quantity": 1.5}}}, "user_1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", obj{"items": []obj{{"articleId": article.ID, "quantity": 1}}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", obj{"items": []obj{{"articleId": article.ID, "quantity": 1}}}, "user_unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectsTokenSignedWithOtherKey(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "user_1")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user_1"}).
		SignedString([]byte("other"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListMyOrdersAndAll(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")
	_, err := env.identity.RegisterUser(context.Background(), models.NewUser{ExternalSubjectID: "user_2", Email: "c@d.com"})
	require.NoError(t, err)

	item := obj{"items": []obj{{"articleId": article.ID, "quantity": 1}}}
	for _, sub := range []string{"user_1", "user_1", "user_2"} {
		rec := env.do(t, http.MethodPost, "/orders", item, sub)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/orders", nil, "user_1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]resolver.Order](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/orders/all", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]resolver.Order](t, rec)
	assert.Len(t, all, 3)
	assert.Equal(t, "Lamp", all[2].Items[0].Article.Title)
}

func TestUpdateOrder(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")
	other, err := env.catalog.CreateArticle(context.Background(), models.NewArticle{Title: "Mug", Price: price(3)})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/orders", obj{"items": []obj{
		{"articleId": article.ID, "quantity": 1},
		{"articleId": other.ID, "quantity": 2},
	}}, "user_1")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Order](t, rec)

	rec = env.do(t, http.MethodPatch, "/orders/"+created.ID, obj{"status": "shipped"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[resolver.Order](t, rec)
	assert.Equal(t, "shipped", updated.Status)
	assert.Len(t, updated.Items, 2)

	rec = env.do(t, http.MethodPatch, "/orders/"+created.ID, obj{"items": []obj{{"articleId": other.ID, "quantity": 5}}}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	updated = decode[resolver.Order](t, rec)
	assert.Equal(t, "shipped", updated.Status)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Mug", updated.Items[0].Article.Title)

	rec = env.do(t, http.MethodPatch, "/orders/"+created.ID, obj{"status": ""}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", decode[resolver.Order](t, rec).Status)

	rec = env.do(t, http.MethodPatch, "/orders/"+models.NewID(), obj{"status": "shipped"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/orders/bogus", obj{"status": "shipped"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders/not-an-id", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/"+models.NewID(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "order not found")
}

func TestDeletedArticleResolvesToNull(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")

	rec := env.do(t, http.MethodPost, "/orders", obj{"items": []obj{{"articleId": article.ID, "quantity": 3}}}, "user_1")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Order](t, rec)

	rec = env.do(t, http.MethodDelete, "/articles/"+article.ID, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"article":null`)
	got := decode[resolver.Order](t, rec)
	assert.Equal(t, 3, got.Items[0].Quantity)
}

func TestPaymentSheet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders/payment-sheet", obj{"amount": 1000, "currency": "usd", "email": "a@b.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decode[payment.Setup](t, rec)
	assert.Equal(t, "pi_123_secret", setup.PaymentIntent)
	assert.Equal(t, "ek_123", setup.EphemeralKey)
	assert.Equal(t, "cus_123", setup.Customer)
	assert.Equal(t, "pk_test", setup.PublishableKey)
	assert.Equal(t, int64(100000), env.processor.amount)
}

func TestPaymentSheetUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.processor.err = errors.New("invalid api key")

	rec := env.do(t, http.MethodPost, "/orders/payment-sheet", obj{"amount": 10, "currency": "usd", "email": "a@b.com"}, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "invalid api key")
}

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users", obj{"email": "a@b.com"}, "user_9")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user_9", decode[models.User](t, rec).ExternalSubjectID)

	rec = env.do(t, http.MethodPost, "/users", obj{"email": "a@b.com"}, "user_9")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/me", nil, "user_9")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArticles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/articles", obj{"title": "Chair", "price": 19.6, "glb": "chair.glb"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[resolver.Article](t, rec)
	assert.Equal(t, int64(20), created.Price)
	assert.Equal(t, "https://api.example.com/articles/glb/chair.glb", *created.GlbURL)

	rec = env.do(t, http.MethodGet, "/articles", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]resolver.Article](t, rec), 1)

	rec = env.do(t, http.MethodPost, "/articles", obj{"price": 5}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title", decode[map[string]string](t, rec)["field"])

	rec = env.do(t, http.MethodPost, "/articles", obj{"title": "NoPrice"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price", decode[map[string]string](t, rec)["field"])
}

func TestServeAsset(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(env.assets, "images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("png-bytes"), 0o644))

	rec := env.do(t, http.MethodGet, "/articles/image/a.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/articles/image/missing.png", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeAssetFromResolvedURL(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Join(env.assets, "images", "lamps")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "red lamp(1)!.png"), []byte("nested"), 0o644))

	article, err := env.catalog.CreateArticle(context.Background(), models.NewArticle{
		Title: "Lamp", Price: price(10), ImageFile: "lamps/red lamp(1)!.png",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/articles/"+article.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	imageURL := *decode[resolver.Article](t, rec).ImageURL
	assert.Equal(t, "https://api.example.com/articles/image/lamps%2Fred%20lamp(1)!.png", imageURL)

	rec = env.do(t, http.MethodGet, strings.TrimPrefix(imageURL, "https://api.example.com"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nested", rec.Body.String())
}

func TestServeAssetStaysInsideAssetDir(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.assets, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.assets, "secret"), []byte("secret"), 0o644))

	rec := env.do(t, http.MethodGet, "/articles/image/..%2Fsecret", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, "secret", rec.Body.String())
}

func TestRequestAuthority(t *testing.T) {
	env := newTestEnv(t)
	_, article := env.seed(t, "user_1")

	req := httptest.NewRequest(http.MethodGet, "/articles/"+article.ID, nil)
	req.Host = "localhost:3000"
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000/articles/image/a.png", *decode[resolver.Article](t, rec).ImageURL)
}

type obj = map[string]any

func price(v float64) *float64 {
	return &v
}

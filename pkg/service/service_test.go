package service

import (
	"context"
	"sync"
	"testing"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/repository"
	"github.com/example/articleshop/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const authority = "https://api.example.com"

type recordedEvent struct {
	action   string
	entityID string
	data     map[string]interface{}
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeAuditor) Record(action, entityID string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{action, entityID, data})
}

type fixture struct {
	repo     *repository.MemoryRepository
	catalog  *CatalogService
	identity *IdentityService
	orders   *OrderService
	audit    *fakeAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	logger := zap.NewNop()
	audit := &fakeAuditor{}
	return &fixture{
		repo:     repo,
		catalog:  NewCatalogService(repo, logger),
		identity: NewIdentityService(repo, logger),
		orders:   NewOrderService(repo, repo, resolver.New(repo, logger), audit, logger),
		audit:    audit,
	}
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u, err := f.identity.RegisterUser(context.Background(), models.NewUser{
		ExternalSubjectID: "user_" + models.NewID(),
		Email:             "a@b.com",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) article(t *testing.T, title, image string) *models.Article {
	t.Helper()
	a, err := f.catalog.CreateArticle(context.Background(), models.NewArticle{Title: title, Price: price(10), ImageFile: image})
	require.NoError(t, err)
	return a
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{19.6, 20},
		{19.5, 20},
		{19.4, 19},
		{100, 100},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundPrice(tt.in), "RoundPrice(%v)", tt.in)
	}
}

func TestCreateArticleRoundsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.catalog.CreateArticle(ctx, models.NewArticle{Title: "Lamp", Price: price(19.6)})
	require.NoError(t, err)

	stored, err := f.catalog.GetArticle(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stored.Price)
}

func TestCreateArticleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    models.NewArticle
		field string
	}{
		{"missing title", models.NewArticle{Price: price(5)}, "title"},
		{"missing price", models.NewArticle{Title: "NoPrice"}, "price"},
		{"negative price", models.NewArticle{Title: "Lamp", Price: price(-1)}, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.CreateArticle(ctx, tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}

	articles, err := f.catalog.ListArticles(ctx)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestCreateArticleAcceptsZeroPrice(t *testing.T) {
	f := newFixture(t)

	created, err := f.catalog.CreateArticle(context.Background(), models.NewArticle{Title: "Sticker", Price: price(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.Price)
}

func TestRegisterUserRejectsDuplicateSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := models.NewUser{ExternalSubjectID: "user_1", Email: "a@b.com"}

	_, err := f.identity.RegisterUser(ctx, in)
	require.NoError(t, err)
	_, err = f.identity.RegisterUser(ctx, in)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.identity.RegisterUser(ctx, models.NewUser{ExternalSubjectID: "user_2", Email: "nope"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	a1 := f.article(t, "Lamp", "a.png")
	a2 := f.article(t, "Mug", "")

	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{
		{ArticleID: a1.ID, Quantity: 1},
		{ArticleID: a2.ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, u.ID, order.UserID)
	assert.False(t, order.CreatedAt.IsZero())

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "create_order", f.audit.events[0].action)
	assert.Equal(t, order.ID, f.audit.events[0].entityID)
}

func TestCreateOrderFailures(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	a := f.article(t, "Lamp", "")

	tests := []struct {
		name   string
		userID string
		items  []models.ItemInput
		want   error
	}{
		{"empty items", u.ID, []models.ItemInput{}, apperror.ErrValidation},
		{"nil items", u.ID, nil, apperror.ErrValidation},
		{"zero quantity", u.ID, []models.ItemInput{{ArticleID: a.ID, Quantity: 0}}, apperror.ErrValidation},
		{"negative quantity", u.ID, []models.ItemInput{{ArticleID: a.ID, Quantity: -2}}, apperror.ErrValidation},
		{"malformed article id", u.ID, []models.ItemInput{{ArticleID: "abc", Quantity: 1}}, apperror.ErrValidation},
		{"malformed user id", "abc", []models.ItemInput{{ArticleID: a.ID, Quantity: 1}}, apperror.ErrValidation},
		{"unknown user", models.NewID(), []models.ItemInput{{ArticleID: a.ID, Quantity: 1}}, apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), tt.userID, tt.items)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.audit.events)
}

func TestCreateOrderReportsItemField(t *testing.T) {
	f := newFixture(t)
	u := f.user(t)
	a := f.article(t, "Lamp", "")

	_, err := f.orders.CreateOrder(context.Background(), u.ID, []models.ItemInput{
		{ArticleID: a.ID, Quantity: 1},
		{ArticleID: a.ID, Quantity: 0},
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "items[1].quantity", appErr.Field)
}

func TestUpdateOrderStatusKeepsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	a := f.article(t, "Lamp", "a.png")
	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{{ArticleID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	shipped := "shipped"
	updated, err := f.orders.UpdateOrder(ctx, order.ID, models.OrderPatch{Status: &shipped}, authority)
	require.NoError(t, err)
	assert.Equal(t, "shipped", updated.Status)

	got, err := f.orders.GetOrder(ctx, order.ID, authority)
	require.NoError(t, err)
	assert.Equal(t, "shipped", got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "https://api.example.com/articles/image/a.png", *got.Items[0].Article.ImageURL)
}

func TestUpdateOrderReplacesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	a1 := f.article(t, "Lamp", "")
	a2 := f.article(t, "Mug", "")
	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{
		{ArticleID: a1.ID, Quantity: 1},
		{ArticleID: a2.ID, Quantity: 1},
	})
	require.NoError(t, err)

	items := []models.ItemInput{{ArticleID: a2.ID, Quantity: 7}}
	updated, err := f.orders.UpdateOrder(ctx, order.ID, models.OrderPatch{Items: &items}, authority)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, a2.ID, updated.Items[0].ArticleID)
	assert.Equal(t, 7, updated.Items[0].Quantity)
	assert.Equal(t, models.StatusPending, updated.Status)

	empty := []models.ItemInput{}
	updated, err = f.orders.UpdateOrder(ctx, order.ID, models.OrderPatch{Items: &empty}, authority)
	require.NoError(t, err)
	assert.Empty(t, updated.Items)
}

func TestUpdateOrderFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	a := f.article(t, "Lamp", "")
	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{{ArticleID: a.ID, Quantity: 1}})
	require.NoError(t, err)

	shipped, blank := "shipped", ""
	bad := []models.ItemInput{{ArticleID: a.ID, Quantity: 0}}

	_, err = f.orders.UpdateOrder(ctx, models.NewID(), models.OrderPatch{Status: &shipped}, authority)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.orders.UpdateOrder(ctx, "not-an-id", models.OrderPatch{Status: &shipped}, authority)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.orders.UpdateOrder(ctx, order.ID, models.OrderPatch{Items: &bad}, authority)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	updated, err := f.orders.UpdateOrder(ctx, order.ID, models.OrderPatch{Status: &blank}, authority)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.Len(t, updated.Items, 1)

	got, err := f.orders.GetOrder(ctx, order.ID, authority)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Len(t, got.Items, 1)
}

func TestGetOrderWithDeletedArticle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	kept := f.article(t, "Lamp", "")
	gone := f.article(t, "Mug", "mug.png")
	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{
		{ArticleID: gone.ID, Quantity: 4},
		{ArticleID: kept.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteArticle(ctx, gone.ID))

	got, err := f.orders.GetOrder(ctx, order.ID, authority)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Nil(t, got.Items[0].Article)
	assert.Equal(t, 4, got.Items[0].Quantity)
	assert.Equal(t, "Lamp", got.Items[1].Article.Title)
}

func TestGetOrderErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.GetOrder(ctx, "xyz", authority)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.orders.GetOrder(ctx, models.NewID(), authority)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t), f.user(t)
	a := f.article(t, "Lamp", "")
	items := []models.ItemInput{{ArticleID: a.ID, Quantity: 1}}

	for _, u := range []*models.User{alice, alice, bob} {
		_, err := f.orders.CreateOrder(ctx, u.ID, items)
		require.NoError(t, err)
	}

	mine, err := f.orders.ListOrdersForUser(ctx, alice.ID, authority)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, alice.ID, o.UserID)
		assert.Equal(t, "Lamp", o.Items[0].Article.Title)
	}

	all, err := f.orders.ListAllOrders(ctx, authority)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := f.orders.ListOrdersForUser(ctx, models.NewID(), authority)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveDoesNotMutateStoredOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	a := f.article(t, "Lamp", "a.png")
	order, err := f.orders.CreateOrder(ctx, u.ID, []models.ItemInput{{ArticleID: a.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.orders.GetOrder(ctx, order.ID, authority)
	require.NoError(t, err)

	stored, err := f.repo.FindArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", stored.ImageFile)
}

func price(v float64) *float64 {
	return &v
}

package repository

import (
	"context"
	"sync"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
)

// MemoryRepository keeps everything in process. Listing follows insertion order.
// Records are copied in and out so callers never share state with the store.
type MemoryRepository struct {
	mu sync.RWMutex

	articles     map[string]*models.Article
	articleOrder []string
	users        map[string]*models.User
	subjects     map[string]string
	orders       map[string]*models.Order
	orderOrder   []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		articles: make(map[string]*models.Article),
		users:    make(map[string]*models.User),
		subjects: make(map[string]string),
		orders:   make(map[string]*models.Order),
	}
}

func (m *MemoryRepository) Ping(context.Context) error  { return nil }
func (m *MemoryRepository) Close(context.Context) error { return nil }

func (m *MemoryRepository) CreateArticle(_ context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articles[article.ID]; ok {
		return apperror.Conflict("article", article.ID)
	}
	stored := *article
	m.articles[article.ID] = &stored
	m.articleOrder = append(m.articleOrder, article.ID)
	return nil
}

func (m *MemoryRepository) FindArticle(_ context.Context, id string) (*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, apperror.NotFound("article", id)
	}
	result := *a
	return &result, nil
}

func (m *MemoryRepository) FindArticles(_ context.Context, ids []string) (map[string]*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]*models.Article, len(ids))
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			result := *a
			found[id] = &result
		}
	}
	return found, nil
}

func (m *MemoryRepository) ListArticles(context.Context) ([]*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Article, 0, len(m.articles))
	for _, id := range m.articleOrder {
		if a, ok := m.articles[id]; ok {
			c := *a
			result = append(result, &c)
		}
	}
	return result, nil
}

func (m *MemoryRepository) DeleteArticle(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articles[id]; !ok {
		return apperror.NotFound("article", id)
	}
	delete(m.articles, id)
	m.articleOrder = without(m.articleOrder, id)
	return nil
}

func (m *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subjects[user.ExternalSubjectID]; ok {
		return apperror.Conflict("user", user.ExternalSubjectID)
	}
	stored := *user
	m.users[user.ID] = &stored
	m.subjects[user.ExternalSubjectID] = user.ID
	return nil
}

func (m *MemoryRepository) FindUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (m *MemoryRepository) FindUserBySubject(_ context.Context, subject string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.subjects[subject]
	if !ok {
		return nil, apperror.NotFound("user", subject)
	}
	result := *m.users[id]
	return &result, nil
}

func (m *MemoryRepository) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.subjects, u.ExternalSubjectID)
	delete(m.users, id)
	return nil
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return apperror.Conflict("order", order.ID)
	}
	m.orders[order.ID] = order.Clone()
	m.orderOrder = append(m.orderOrder, order.ID)
	return nil
}

func (m *MemoryRepository) FindOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, apperror.NotFound("order", id)
	}
	return o.Clone(), nil
}

func (m *MemoryRepository) FindOrders(_ context.Context, filter OrderFilter) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Order, 0)
	for _, id := range m.orderOrder {
		o, ok := m.orders[id]
		if !ok || (filter.UserID != "" && o.UserID != filter.UserID) {
			continue
		}
		result = append(result, o.Clone())
	}
	return result, nil
}

func (m *MemoryRepository) UpdateOrder(_ context.Context, id string, update models.OrderUpdate) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, apperror.NotFound("order", id)
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.Items != nil {
		o.Items = append([]models.OrderItem{}, (*update.Items)...)
	}
	return o.Clone(), nil
}

func (m *MemoryRepository) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return apperror.NotFound("order", id)
	}
	delete(m.orders, id)
	m.orderOrder = without(m.orderOrder, id)
	return nil
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

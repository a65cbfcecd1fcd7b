package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type articleRow struct {
	ID          string    `gorm:"primaryKey;type:char(24)"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text"`
	Price       int64     `gorm:"not null"`
	ImageFile   string    `gorm:"type:varchar(255)"`
	ModelFile   string    `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (articleRow) TableName() string {
	return "articles"
}

type userRow struct {
	ID                string    `gorm:"primaryKey;type:char(24)"`
	ExternalSubjectID string    `gorm:"type:varchar(191);uniqueIndex;not null"`
	Email             string    `gorm:"type:varchar(255);not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (userRow) TableName() string {
	return "users"
}

// orderItemRow has no foreign key to articles: line items reference articles weakly.
type orderItemRow struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"type:char(24);not null;index"`
	Position  int    `gorm:"not null"`
	ArticleID string `gorm:"type:char(24);not null"`
	Quantity  int    `gorm:"not null"`
}

func (orderItemRow) TableName() string {
	return "order_items"
}

type orderRow struct {
	ID        string         `gorm:"primaryKey;type:char(24)"`
	UserID    string         `gorm:"type:char(24);not null;index"`
	Status    string         `gorm:"type:varchar(32);default:'pending'"`
	CreatedAt time.Time      `gorm:"not null"`
	Items     []orderItemRow `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRow) TableName() string {
	return "orders"
}

func itemRows(orderID string, items []models.OrderItem) []orderItemRow {
	rows := make([]orderItemRow, len(items))
	for i, it := range items {
		rows[i] = orderItemRow{OrderID: orderID, Position: i, ArticleID: it.ArticleID, Quantity: it.Quantity}
	}
	return rows
}

func (r *articleRow) model() *models.Article {
	return &models.Article{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		ImageFile:   r.ImageFile,
		ModelFile:   r.ModelFile,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *userRow) model() *models.User {
	return &models.User{
		ID:                r.ID,
		ExternalSubjectID: r.ExternalSubjectID,
		Email:             r.Email,
		CreatedAt:         r.CreatedAt,
	}
}

func (r *orderRow) model() *models.Order {
	items := make([]models.OrderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = models.OrderItem{ArticleID: it.ArticleID, Quantity: it.Quantity}
	}
	return &models.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		Items:     items,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(cfg *config.MySQLConfig) (*MySQLRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.AutoMigrate(&articleRow{}, &userRow{}, &orderRow{}, &orderItemRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &MySQLRepository{db: db}, nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *MySQLRepository) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *MySQLRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	row := articleRow{
		ID:          article.ID,
		Title:       article.Title,
		Description: article.Description,
		Price:       article.Price,
		ImageFile:   article.ImageFile,
		ModelFile:   article.ModelFile,
		CreatedAt:   article.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (r *MySQLRepository) FindArticle(ctx context.Context, id string) (*models.Article, error) {
	var row articleRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("article", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	return row.model(), nil
}

func (r *MySQLRepository) FindArticles(ctx context.Context, ids []string) (map[string]*models.Article, error) {
	found := make(map[string]*models.Article, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []articleRow
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	for i := range rows {
		found[rows[i].ID] = rows[i].model()
	}
	return found, nil
}

func (r *MySQLRepository) ListArticles(ctx context.Context) ([]*models.Article, error) {
	var rows []articleRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	result := make([]*models.Article, len(rows))
	for i := range rows {
		result[i] = rows[i].model()
	}
	return result, nil
}

func (r *MySQLRepository) DeleteArticle(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &articleRow{}, "article", id)
}

func (r *MySQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	row := userRow{
		ID:                user.ID,
		ExternalSubjectID: user.ExternalSubjectID,
		Email:             user.Email,
		CreatedAt:         user.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("user", user.ExternalSubjectID)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *MySQLRepository) FindUser(ctx context.Context, id string) (*models.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *MySQLRepository) FindUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.findUser(ctx, "external_subject_id = ?", subject)
}

func (r *MySQLRepository) findUser(ctx context.Context, query, key string) (*models.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(query, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return row.model(), nil
}

func (r *MySQLRepository) DeleteUser(ctx context.Context, id string) error {
	return r.deleteByID(ctx, &userRow{}, "user", id)
}

func (r *MySQLRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	row := orderRow{
		ID:        order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		Items:     itemRows(order.ID, order.Items),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *MySQLRepository) orders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

func (r *MySQLRepository) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	var row orderRow
	err := r.orders(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return row.model(), nil
}

func (r *MySQLRepository) FindOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	query := r.orders(ctx)
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	var rows []orderRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	result := make([]*models.Order, len(rows))
	for i := range rows {
		result[i] = rows[i].model()
	}
	return result, nil
}

// UpdateOrder replaces status and/or the full item list inside one transaction.
func (r *MySQLRepository) UpdateOrder(ctx context.Context, id string, update models.OrderUpdate) (*models.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&orderRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperror.NotFound("order", id)
		}
		if update.Status != nil {
			if err := tx.Model(&orderRow{}).Where("id = ?", id).Update("status", *update.Status).Error; err != nil {
				return err
			}
		}
		if update.Items != nil {
			if err := tx.Where("order_id = ?", id).Delete(&orderItemRow{}).Error; err != nil {
				return err
			}
			if rows := itemRows(id, *update.Items); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return r.FindOrder(ctx, id)
}

func (r *MySQLRepository) DeleteOrder(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&orderItemRow{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		return r.deleteByIDTx(tx, &orderRow{}, "order", id)
	})
}

func (r *MySQLRepository) deleteByID(ctx context.Context, model any, resource, id string) error {
	return r.deleteByIDTx(r.db.WithContext(ctx), model, resource, id)
}

func (r *MySQLRepository) deleteByIDTx(db *gorm.DB, model any, resource, id string) error {
	res := db.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

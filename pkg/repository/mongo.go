package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/config"
	"github.com/example/articleshop/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names match the ones the catalog import and existing data use.
const (
	articlesCollection = "articles"
	usersCollection    = "users"
	ordersCollection   = "orders"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	m := &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := m.database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clerkUserId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	_, err = m.database.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create orders index: %w", err)
	}
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Stored document shapes. Filenames live under imageUrl/glbUrl for compatibility with
// documents written before the fields were renamed in the API.
type articleDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Price       int64              `bson:"price"`
	ImageFile   string             `bson:"imageUrl,omitempty"`
	ModelFile   string             `bson:"glbUrl,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type userDoc struct {
	ID                primitive.ObjectID `bson:"_id"`
	ExternalSubjectID string             `bson:"clerkUserId"`
	Email             string             `bson:"email"`
	CreatedAt         time.Time          `bson:"createdAt"`
}

type orderItemDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Article  primitive.ObjectID `bson:"article"`
	Quantity int                `bson:"quantity"`
}

type orderDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	UserID    primitive.ObjectID `bson:"userId"`
	Items     []orderItemDoc     `bson:"items"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *articleDoc) model() *models.Article {
	return &models.Article{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		ImageFile:   d.ImageFile,
		ModelFile:   d.ModelFile,
		CreatedAt:   d.CreatedAt,
	}
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:                d.ID.Hex(),
		ExternalSubjectID: d.ExternalSubjectID,
		Email:             d.Email,
		CreatedAt:         d.CreatedAt,
	}
}

func (d *orderDoc) model() *models.Order {
	items := make([]models.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = models.OrderItem{ArticleID: it.Article.Hex(), Quantity: it.Quantity}
	}
	return &models.Order{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Items:     items,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
}

func objectID(resource, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.InvalidID(resource+" id", id)
	}
	return oid, nil
}

func itemDocs(items []models.OrderItem) ([]orderItemDoc, error) {
	docs := make([]orderItemDoc, len(items))
	for i, it := range items {
		oid, err := objectID("article", it.ArticleID)
		if err != nil {
			return nil, err
		}
		docs[i] = orderItemDoc{ID: primitive.NewObjectID(), Article: oid, Quantity: it.Quantity}
	}
	return docs, nil
}

func (m *MongoRepository) CreateArticle(ctx context.Context, article *models.Article) error {
	oid, err := objectID("article", article.ID)
	if err != nil {
		return err
	}
	doc := articleDoc{
		ID:          oid,
		Title:       article.Title,
		Description: article.Description,
		Price:       article.Price,
		ImageFile:   article.ImageFile,
		ModelFile:   article.ModelFile,
		CreatedAt:   article.CreatedAt,
	}
	if _, err := m.database.Collection(articlesCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindArticle(ctx context.Context, id string) (*models.Article, error) {
	oid, err := objectID("article", id)
	if err != nil {
		return nil, err
	}
	var doc articleDoc
	err = m.database.Collection(articlesCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("article", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	return doc.model(), nil
}

// FindArticles fetches many articles in one query. Ids that are malformed or missing are
// left out of the result rather than failing the lookup.
func (m *MongoRepository) FindArticles(ctx context.Context, ids []string) (map[string]*models.Article, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	found := make(map[string]*models.Article, len(oids))
	if len(oids) == 0 {
		return found, nil
	}

	cursor, err := m.database.Collection(articlesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []articleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	for i := range docs {
		a := docs[i].model()
		found[a.ID] = a
	}
	return found, nil
}

func (m *MongoRepository) ListArticles(ctx context.Context) ([]*models.Article, error) {
	cursor, err := m.database.Collection(articlesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []articleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	result := make([]*models.Article, len(docs))
	for i := range docs {
		result[i] = docs[i].model()
	}
	return result, nil
}

func (m *MongoRepository) DeleteArticle(ctx context.Context, id string) error {
	return m.deleteByID(ctx, articlesCollection, "article", id)
}

func (m *MongoRepository) CreateUser(ctx context.Context, user *models.User) error {
	oid, err := objectID("user", user.ID)
	if err != nil {
		return err
	}
	doc := userDoc{
		ID:                oid,
		ExternalSubjectID: user.ExternalSubjectID,
		Email:             user.Email,
		CreatedAt:         user.CreatedAt,
	}
	_, err = m.database.Collection(usersCollection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return apperror.Conflict("user", user.ExternalSubjectID)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID("user", id)
	if err != nil {
		return nil, err
	}
	return m.findUser(ctx, bson.M{"_id": oid}, id)
}

func (m *MongoRepository) FindUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"clerkUserId": subject}, subject)
}

func (m *MongoRepository) findUser(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var doc userDoc
	err := m.database.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.model(), nil
}

func (m *MongoRepository) DeleteUser(ctx context.Context, id string) error {
	return m.deleteByID(ctx, usersCollection, "user", id)
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	oid, err := objectID("order", order.ID)
	if err != nil {
		return err
	}
	userID, err := objectID("user", order.UserID)
	if err != nil {
		return err
	}
	items, err := itemDocs(order.Items)
	if err != nil {
		return err
	}
	doc := orderDoc{
		ID:        oid,
		UserID:    userID,
		Items:     items,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	}
	if _, err := m.database.Collection(ordersCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := objectID("order", id)
	if err != nil {
		return nil, err
	}
	var doc orderDoc
	err = m.database.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return doc.model(), nil
}

// FindOrders returns orders in natural collection order; no sort is applied.
func (m *MongoRepository) FindOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	query := bson.M{}
	if filter.UserID != "" {
		userID, err := objectID("user", filter.UserID)
		if err != nil {
			return nil, err
		}
		query["userId"] = userID
	}

	cursor, err := m.database.Collection(ordersCollection).Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	result := make([]*models.Order, len(docs))
	for i := range docs {
		result[i] = docs[i].model()
	}
	return result, nil
}

// UpdateOrder issues one $set on the order document, so status and items change together
// from the point of view of other readers of this document.
func (m *MongoRepository) UpdateOrder(ctx context.Context, id string, update models.OrderUpdate) (*models.Order, error) {
	oid, err := objectID("order", id)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return m.FindOrder(ctx, id)
	}

	set := bson.M{}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Items != nil {
		items, err := itemDocs(*update.Items)
		if err != nil {
			return nil, err
		}
		set["items"] = items
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDoc
	err = m.database.Collection(ordersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return doc.model(), nil
}

func (m *MongoRepository) DeleteOrder(ctx context.Context, id string) error {
	return m.deleteByID(ctx, ordersCollection, "order", id)
}

func (m *MongoRepository) deleteByID(ctx context.Context, collection, resource, id string) error {
	oid, err := objectID(resource, id)
	if err != nil {
		return err
	}
	res, err := m.database.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s: %w", resource, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Service   string             `bson:"service"`
	Action    string             `bson:"action"`
	EntityID  string             `bson:"entity_id"`
	Data      bson.M             `bson:"data"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := m.database.Collection(m.config.AuditLog).InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.database.Collection(m.config.AuditLog).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

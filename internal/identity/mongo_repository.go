package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// customerDoc is the persisted shape: the customer record with its payment
// methods embedded, since they are only ever read and written together.
type customerDoc struct {
	domain.Customer `bson:",inline"`
	Methods         []domain.PaymentMethod `bson:"payment_methods"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("customers"),
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "fingerprint_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (m *mongoRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	existing := m.collection.FindOne(ctx, bson.M{"fingerprint_hash": c.FingerprintHash})
	if existing.Err() == nil {
		return ErrFingerprintExists
	}
	if !errors.Is(existing.Err(), mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to check fingerprint: %w", existing.Err())
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	doc := customerDoc{Customer: *c, Methods: []domain.PaymentMethod{}}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrFingerprintExists
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (m *mongoRepository) GetByFingerprint(ctx context.Context, hash string) (*domain.Customer, error) {
	return m.findOne(ctx, bson.M{"fingerprint_hash": hash})
}

func (m *mongoRepository) GetByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	return m.findOne(ctx, bson.M{"customer_id": customerID})
}

func (m *mongoRepository) findOne(ctx context.Context, filter bson.M) (*domain.Customer, error) {
	var doc customerDoc
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &doc.Customer, nil
}

func (m *mongoRepository) PaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error) {
	var doc customerDoc
	err := m.collection.FindOne(ctx, bson.M{"customer_id": customerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get payment methods: %w", err)
	}
	return doc.Methods, nil
}

func (m *mongoRepository) AddPaymentMethod(ctx context.Context, customerID string, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	methods, err := m.PaymentMethods(ctx, customerID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}

	var maxID int64
	for _, existing := range methods {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	method.ID = maxID + 1

	// The first method becomes the default automatically.
	if len(methods) == 0 {
		method.IsDefault = true
	}

	update := bson.M{
		"$push": bson.M{"payment_methods": method},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	if method.IsDefault && len(methods) > 0 {
		if err := m.clearDefault(ctx, customerID); err != nil {
			return domain.PaymentMethod{}, err
		}
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"customer_id": customerID}, update)
	if err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("failed to add payment method: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.PaymentMethod{}, ErrCustomerNotFound
	}
	return method, nil
}

func (m *mongoRepository) SetDefaultMethod(ctx context.Context, customerID string, methodID int64) error {
	if err := m.clearDefault(ctx, customerID); err != nil {
		return err
	}

	filter := bson.M{"customer_id": customerID, "payment_methods.id": methodID}
	update := bson.M{
		"$set": bson.M{
			"payment_methods.$[elem].is_default": true,
			"updated_at":                         time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.id": methodID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to set default method: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (m *mongoRepository) clearDefault(ctx context.Context, customerID string) error {
	update := bson.M{
		"$set": bson.M{"payment_methods.$[].is_default": false},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"customer_id": customerID}, update)
	if err != nil {
		return fmt.Errorf("failed to clear default method: %w", err)
	}
	return nil
}

func (m *mongoRepository) CountCustomers(ctx context.Context) (int, error) {
	n, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return int(n), nil
}

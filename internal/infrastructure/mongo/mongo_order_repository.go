package mongo

import (
	"context"
	"time"

	"boutique-backend/internal/domain/aggregate"
	apperrors "boutique-backend/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// orderDocument is the persisted shape of an order aggregate
type orderDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"user_id"`
	CartID          string    `bson:"cart_id"`
	AmountTotal     int64     `bson:"amount_total"`
	Currency        string    `bson:"currency"`
	ShippingMethod  string    `bson:"shipping_method"`
	Status          string    `bson:"status"`
	SessionID       string    `bson:"session_id,omitempty"`
	SessionURL      string    `bson:"session_url,omitempty"`
	PaymentIntentID string    `bson:"payment_intent_id,omitempty"`
	Version         int       `bson:"version"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// MongoOrderRepository persists order aggregates to MongoDB
type MongoOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderRepository creates a new MongoDB order repository
func NewMongoOrderRepository(database *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		collection: database.Collection("orders"),
	}
}

// GetByID loads an order aggregate
func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*aggregate.Order, error) {
	var doc orderDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("order")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to load order: " + err.Error())
	}

	return aggregate.RehydrateOrder(
		doc.ID, doc.UserID, doc.CartID, doc.AmountTotal, doc.Currency, doc.ShippingMethod,
		aggregate.OrderStatus(doc.Status), doc.SessionID, doc.SessionURL, doc.PaymentIntentID,
		doc.Version, doc.CreatedAt, doc.UpdatedAt,
	), nil
}

// Save upserts the order state
func (r *MongoOrderRepository) Save(ctx context.Context, order *aggregate.Order) error {
	doc := orderDocument{
		ID:              order.ID(),
		UserID:          order.UserID(),
		CartID:          order.CartID(),
		AmountTotal:     order.AmountTotal(),
		Currency:        order.Currency(),
		ShippingMethod:  order.ShippingMethod(),
		Status:          string(order.Status()),
		SessionID:       order.SessionID(),
		SessionURL:      order.SessionURL(),
		PaymentIntentID: order.PaymentIntentID(),
		Version:         order.Version(),
		CreatedAt:       order.CreatedAt(),
		UpdatedAt:       order.UpdatedAt(),
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": order.ID()}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return apperrors.NewDatabaseError("failed to save order: " + err.Error())
	}
	return nil
}

// MarkPaid applies the unpaid -> paid transition conditionally. The status
// filter makes the update a no-op for already-paid orders, which is how a
// duplicate webhook delivery is absorbed.
func (r *MongoOrderRepository) MarkPaid(ctx context.Context, orderID, paymentIntentID string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": string(aggregate.OrderStatusUnpaid)},
		bson.M{
			"$set": bson.M{
				"status":            string(aggregate.OrderStatusPaid),
				"payment_intent_id": paymentIntentID,
				"updated_at":        time.Now().UTC(),
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return false, apperrors.NewDatabaseError("failed to mark order paid: " + err.Error())
	}
	return result.ModifiedCount > 0, nil
}

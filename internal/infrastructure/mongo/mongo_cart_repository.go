package mongo

import (
	"context"

	"boutique-backend/internal/domain/aggregate"
	apperrors "boutique-backend/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCartRepository reads cart aggregates from MongoDB
type MongoCartRepository struct {
	collection *mongo.Collection
}

// NewMongoCartRepository creates a new MongoDB cart repository
func NewMongoCartRepository(database *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{
		collection: database.Collection("carts"),
	}
}

// GetCartWithItems loads a cart with its items
func (r *MongoCartRepository) GetCartWithItems(ctx context.Context, cartID string) (*aggregate.Cart, error) {
	var cart aggregate.Cart
	err := r.collection.FindOne(ctx, bson.M{"_id": cartID}).Decode(&cart)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("cart")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to load cart: " + err.Error())
	}
	return &cart, nil
}

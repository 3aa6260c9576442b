package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const offerCollectionName = "offers"

type offerRepository struct {
	collection *mongo.Collection
}

func NewOfferRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.OfferRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(offerCollectionName)

	// One pending offer per (listing, buyer) pair; enforced at the storage
	// level so racing createOffer calls cannot both land.
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "buyer_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"status": entity.OfferStatusPending},
			),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &offerRepository{collection: collection}
}

func (r *offerRepository) Create(ctx context.Context, offer *entity.Offer) error {
	_, err := r.collection.InsertOne(ctx, offer)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, offerID string) (*entity.Offer, error) {
	var offer entity.Offer
	err := r.collection.FindOne(ctx, bson.M{"_id": offerID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer by ID %s: %w", offerID, err)
	}
	return &offer, nil
}

func (r *offerRepository) ListByListing(ctx context.Context, listingID string) ([]entity.Offer, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"listing_id": listingID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for listing %s: %w", listingID, err)
	}
	defer cursor.Close(ctx)

	var offers []entity.Offer
	if err = cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode listed offers: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) HasPendingForBuyer(ctx context.Context, listingID, buyerID string) (bool, error) {
	filter := bson.M{
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"status":     entity.OfferStatusPending,
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count pending offers for buyer %s on listing %s: %w", buyerID, listingID, err)
	}
	return count > 0, nil
}

func (r *offerRepository) UpdateStatus(ctx context.Context, params repository.UpdateOfferStatusParams) error {
	filter := bson.M{
		"_id":     params.OfferID,
		"version": params.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     params.Status,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update offer status for ID %s: %w", params.OfferID, err)
	}
	if result.MatchedCount == 0 {
		var existing entity.Offer
		errFind := r.collection.FindOne(ctx, bson.M{"_id": params.OfferID}).Decode(&existing)
		if errors.Is(errFind, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		if errFind == nil && existing.Version != params.Version {
			return repository.ErrOptimisticLock
		}
		return repository.ErrUpdateFailed
	}
	return nil
}

func (r *offerRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":     entity.OfferStatusPending,
		"expires_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     entity.OfferStatusExpired,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire due offers: %w", err)
	}
	return result.ModifiedCount, nil
}

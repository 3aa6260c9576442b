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

const listingCollectionName = "listings"

type listingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ListingRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(listingCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &listingRepository{collection: collection}
}

func (r *listingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	_, err := r.collection.InsertOne(ctx, listing)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	var listing entity.Listing
	err := r.collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by ID %s: %w", listingID, err)
	}
	return &listing, nil
}

func (r *listingRepository) ListActiveBySeller(ctx context.Context, sellerID string) ([]entity.Listing, error) {
	filter := bson.M{"seller_id": sellerID, "status": entity.ListingStatusActive}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings for seller %s: %w", sellerID, err)
	}
	defer cursor.Close(ctx)

	var listings []entity.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listed listings: %w", err)
	}
	return listings, nil
}

// MarkSold is the acceptance gate: the filter requires status=active, so if
// two acceptances race, the second one matches nothing and gets
// ErrStateConflict.
func (r *listingRepository) MarkSold(ctx context.Context, listingID, buyerID string) error {
	filter := bson.M{
		"_id":    listingID,
		"status": entity.ListingStatusActive,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     entity.ListingStatusSold,
			"buyer_id":   buyerID,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark listing %s sold: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardMiss(ctx, listingID)
	}
	return nil
}

func (r *listingRepository) Relist(ctx context.Context, listingID string) error {
	filter := bson.M{
		"_id":    listingID,
		"status": entity.ListingStatusSold,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     entity.ListingStatusActive,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{"buyer_id": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to relist listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardMiss(ctx, listingID)
	}
	return nil
}

// ForceRemove has no status guard: moderation removal applies from any state.
func (r *listingRepository) ForceRemove(ctx context.Context, listingID string) error {
	update := bson.M{
		"$set": bson.M{
			"status":     entity.ListingStatusRemoved,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": listingID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *listingRepository) classifyGuardMiss(ctx context.Context, listingID string) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": listingID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect listing %s after guard miss: %w", listingID, err)
	}
	return repository.ErrStateConflict
}

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
)

const transactionCollectionName = "transactions"

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.TransactionRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(transactionCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "buyer_id", Value: 1}}},
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &transactionRepository{collection: collection}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	_, err := r.collection.InsertOne(ctx, transaction)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	var transaction entity.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": transactionID}).Decode(&transaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID %s: %w", transactionID, err)
	}
	return &transaction, nil
}

func (r *transactionRepository) GetOpenByListing(ctx context.Context, listingID string) (*entity.Transaction, error) {
	filter := bson.M{
		"listing_id": listingID,
		"status": bson.M{"$nin": []entity.TransactionStatus{
			entity.TransactionStatusCompleted,
			entity.TransactionStatusCancelled,
		}},
	}
	var transaction entity.Transaction
	err := r.collection.FindOne(ctx, filter).Decode(&transaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get open transaction for listing %s: %w", listingID, err)
	}
	return &transaction, nil
}

func (r *transactionRepository) Update(ctx context.Context, transaction *entity.Transaction, expectedVersion int64) error {
	filter := bson.M{
		"_id":     transaction.ID,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{
			"status":            transaction.Status,
			"payment_status":    transaction.PaymentStatus,
			"delivery_status":   transaction.DeliveryStatus,
			"delivery_proofs":   transaction.DeliveryProofs,
			"dispute_reason":    transaction.DisputeReason,
			"dispute_raised_at": transaction.DisputeRaisedAt,
			"resolution":        transaction.Resolution,
			"resolution_favor":  transaction.ResolutionFavor,
			"resolved_at":       transaction.ResolvedAt,
			"cancel_reason":     transaction.CancelReason,
			"completed_at":      transaction.CompletedAt,
			"updated_at":        time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transaction.ID, err)
	}
	if result.MatchedCount == 0 {
		var existing entity.Transaction
		errFind := r.collection.FindOne(ctx, bson.M{"_id": transaction.ID}).Decode(&existing)
		if errors.Is(errFind, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		if errFind == nil && existing.Version != expectedVersion {
			return repository.ErrOptimisticLock
		}
		return repository.ErrUpdateFailed
	}
	return nil
}

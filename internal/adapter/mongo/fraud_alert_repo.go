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

const alertCollectionName = "fraud_alerts"

type fraudAlertRepository struct {
	collection *mongo.Collection
}

func NewFraudAlertRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.FraudAlertRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(alertCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "severity", Value: 1}}},
		{Keys: bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &fraudAlertRepository{collection: collection}
}

func (r *fraudAlertRepository) Create(ctx context.Context, alert *entity.FraudAlert) error {
	_, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to create fraud alert: %w", err)
	}
	return nil
}

func (r *fraudAlertRepository) GetByID(ctx context.Context, alertID string) (*entity.FraudAlert, error) {
	var alert entity.FraudAlert
	err := r.collection.FindOne(ctx, bson.M{"_id": alertID}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fraud alert by ID %s: %w", alertID, err)
	}
	return &alert, nil
}

func (r *fraudAlertRepository) ListOpen(ctx context.Context) ([]entity.FraudAlert, error) {
	filter := bson.M{"status": bson.M{"$in": []entity.AlertStatus{
		entity.AlertStatusNew,
		entity.AlertStatusReviewing,
	}}}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list open fraud alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []entity.FraudAlert
	if err = cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode listed fraud alerts: %w", err)
	}
	return alerts, nil
}

func (r *fraudAlertRepository) Update(ctx context.Context, alert *entity.FraudAlert, expectedVersion int64) error {
	filter := bson.M{
		"_id":     alert.ID,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{
			"status":         alert.Status,
			"reviewer_id":    alert.ReviewerID,
			"reviewer_notes": alert.ReviewerNotes,
			"resolved_at":    alert.ResolvedAt,
			"updated_at":     time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update fraud alert %s: %w", alert.ID, err)
	}
	if result.MatchedCount == 0 {
		var existing entity.FraudAlert
		errFind := r.collection.FindOne(ctx, bson.M{"_id": alert.ID}).Decode(&existing)
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

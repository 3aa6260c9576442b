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

const (
	reviewCollectionName    = "reviews"
	aggregateCollectionName = "review_aggregates"
)

type reviewRepository struct {
	collection *mongo.Collection
}

func NewReviewRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ReviewRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(reviewCollectionName)

	indexes := []mongo.IndexModel{
		// One review per (reviewer, target) pair.
		{
			Keys:    bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}, {Key: "reviewer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}, {Key: "removed", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &reviewRepository{collection: collection}
}

func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	_, err := r.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, reviewID string) (*entity.Review, error) {
	var review entity.Review
	err := r.collection.FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review by ID %s: %w", reviewID, err)
	}
	return &review, nil
}

func (r *reviewRepository) ListByTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) ([]entity.Review, error) {
	filter := bson.M{
		"target_type": targetType,
		"target_id":   targetID,
		"removed":     false,
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for target %s/%s: %w", targetType, targetID, err)
	}
	defer cursor.Close(ctx)

	var reviews []entity.Review
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode listed reviews: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepository) AdjustReactionCounters(ctx context.Context, reviewID string, helpfulDelta, unhelpfulDelta int64) error {
	update := bson.M{
		"$inc": bson.M{
			"helpful_count":   helpfulDelta,
			"unhelpful_count": unhelpfulDelta,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": reviewID}, update)
	if err != nil {
		return fmt.Errorf("failed to adjust reaction counters for review %s: %w", reviewID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *reviewRepository) MarkRemoved(ctx context.Context, reviewID string) error {
	update := bson.M{
		"$set": bson.M{
			"removed":    true,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": reviewID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark review %s removed: %w", reviewID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AggregateForTarget runs a full re-aggregation over non-removed reviews
// rather than maintaining a running average, so concurrent moderation
// removals cannot leave the aggregate drifted.
func (r *reviewRepository) AggregateForTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (int64, float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "target_type", Value: targetType},
			{Key: "target_id", Value: targetID},
			{Key: "removed", Value: false},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$target_id"},
			{Key: "mean_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate reviews for target %s/%s: %w", targetType, targetID, err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		MeanRating float64 `bson:"mean_rating"`
		Count      int64   `bson:"count"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return 0, 0, fmt.Errorf("failed to decode review aggregation result: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].Count, results[0].MeanRating, nil
}

type reviewAggregateRepository struct {
	collection *mongo.Collection
}

func NewReviewAggregateRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ReviewAggregateRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(aggregateCollectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &reviewAggregateRepository{collection: collection}
}

func (r *reviewAggregateRepository) Save(ctx context.Context, aggregate *entity.ReviewAggregate) error {
	filter := bson.M{
		"target_type": aggregate.TargetType,
		"target_id":   aggregate.TargetID,
	}
	update := bson.M{
		"$set": bson.M{
			"count":      aggregate.Count,
			"mean":       aggregate.Mean,
			"updated_at": aggregate.UpdatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save aggregate for target %s/%s: %w", aggregate.TargetType, aggregate.TargetID, err)
	}
	return nil
}

func (r *reviewAggregateRepository) Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	filter := bson.M{
		"target_type": targetType,
		"target_id":   targetID,
	}
	var aggregate entity.ReviewAggregate
	err := r.collection.FindOne(ctx, filter).Decode(&aggregate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get aggregate for target %s/%s: %w", targetType, targetID, err)
	}
	return &aggregate, nil
}

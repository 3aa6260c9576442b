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
	reactionCollectionName = "review_reactions"
	reportCollectionName   = "review_reports"
)

type reactionRepository struct {
	collection *mongo.Collection
}

func NewReactionRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ReactionRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(reactionCollectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "review_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &reactionRepository{collection: collection}
}

func (r *reactionRepository) Get(ctx context.Context, reviewID, userID string) (*entity.Reaction, error) {
	filter := bson.M{"review_id": reviewID, "user_id": userID}
	var reaction entity.Reaction
	err := r.collection.FindOne(ctx, filter).Decode(&reaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reaction for review %s by user %s: %w", reviewID, userID, err)
	}
	return &reaction, nil
}

func (r *reactionRepository) Upsert(ctx context.Context, reaction *entity.Reaction) error {
	filter := bson.M{"review_id": reaction.ReviewID, "user_id": reaction.UserID}
	update := bson.M{
		"$set": bson.M{
			"type":       reaction.Type,
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"_id":        reaction.ID,
			"created_at": reaction.CreatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert reaction for review %s by user %s: %w", reaction.ReviewID, reaction.UserID, err)
	}
	return nil
}

func (r *reactionRepository) Delete(ctx context.Context, reviewID, userID string) error {
	filter := bson.M{"review_id": reviewID, "user_id": userID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete reaction for review %s by user %s: %w", reviewID, userID, err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type reviewReportRepository struct {
	collection *mongo.Collection
}

func NewReviewReportRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ReviewReportRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(reportCollectionName)

	indexes := []mongo.IndexModel{
		// One report per (review, reporter) pair.
		{
			Keys:    bson.D{{Key: "review_id", Value: 1}, {Key: "reporter_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &reviewReportRepository{collection: collection}
}

func (r *reviewReportRepository) Create(ctx context.Context, report *entity.ReviewReport) error {
	_, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create review report: %w", err)
	}
	return nil
}

func (r *reviewReportRepository) ListByReview(ctx context.Context, reviewID string) ([]entity.ReviewReport, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"review_id": reviewID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for review %s: %w", reviewID, err)
	}
	defer cursor.Close(ctx)

	var reports []entity.ReviewReport
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode listed reports: %w", err)
	}
	return reports, nil
}

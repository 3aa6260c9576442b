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

const messageCollectionName = "transaction_messages"

type messageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.MessageRepository {
	database := client.Database(cfg.Database)
	collection := database.Collection(messageCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = collection.Indexes().CreateMany(ctx, indexes)

	return &messageRepository{collection: collection}
}

func (r *messageRepository) Create(ctx context.Context, message *entity.TransactionMessage) error {
	_, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to create transaction message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, messageID string) (*entity.TransactionMessage, error) {
	var message entity.TransactionMessage
	err := r.collection.FindOne(ctx, bson.M{"_id": messageID}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID %s: %w", messageID, err)
	}
	return &message, nil
}

func (r *messageRepository) ListByTransaction(ctx context.Context, transactionID string) ([]entity.TransactionMessage, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"transaction_id": transactionID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for transaction %s: %w", transactionID, err)
	}
	defer cursor.Close(ctx)

	var messages []entity.TransactionMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode listed messages: %w", err)
	}
	return messages, nil
}

// MarkRead stamps the read time only if not already stamped, so repeated
// calls are no-ops rather than moving the timestamp.
func (r *messageRepository) MarkRead(ctx context.Context, messageID string, readAt time.Time) error {
	filter := bson.M{
		"_id":     messageID,
		"read_at": nil,
	}
	update := bson.M{
		"$set": bson.M{"read_at": readAt},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	if result.MatchedCount == 0 {
		errFind := r.collection.FindOne(ctx, bson.M{"_id": messageID}).Err()
		if errors.Is(errFind, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		// Already read.
	}
	return nil
}

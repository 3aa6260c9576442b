package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const aggregateCacheKeyPrefix = "review_aggregate:"

type reviewAggregateCache struct {
	client *redis.Client
}

func NewReviewAggregateCache(client *redis.Client) repository.ReviewAggregateCache {
	return &reviewAggregateCache{client: client}
}

func (c *reviewAggregateCache) key(targetType entity.ReviewTargetType, targetID string) string {
	return aggregateCacheKeyPrefix + string(targetType) + ":" + targetID
}

func (c *reviewAggregateCache) Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	val, err := c.client.Get(ctx, c.key(targetType, targetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get aggregate for target %s/%s from redis: %w", targetType, targetID, err)
	}

	var aggregate entity.ReviewAggregate
	if err := json.Unmarshal(val, &aggregate); err != nil {
		_ = c.Delete(ctx, targetType, targetID)
		return nil, fmt.Errorf("failed to unmarshal cached aggregate for target %s/%s: %w", targetType, targetID, err)
	}
	return &aggregate, nil
}

func (c *reviewAggregateCache) Set(ctx context.Context, aggregate *entity.ReviewAggregate, ttl time.Duration) error {
	if aggregate == nil || aggregate.TargetID == "" {
		return errors.New("cannot cache nil aggregate or aggregate with empty target ID")
	}

	data, err := json.Marshal(aggregate)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate for target %s/%s: %w", aggregate.TargetType, aggregate.TargetID, err)
	}

	err = c.client.Set(ctx, c.key(aggregate.TargetType, aggregate.TargetID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set aggregate for target %s/%s to redis: %w", aggregate.TargetType, aggregate.TargetID, err)
	}
	return nil
}

func (c *reviewAggregateCache) Delete(ctx context.Context, targetType entity.ReviewTargetType, targetID string) error {
	err := c.client.Del(ctx, c.key(targetType, targetID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete aggregate for target %s/%s from redis: %w", targetType, targetID, err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

// ReviewAggregateCache is a TTL'd read-through cache for per-target rating
// aggregates. A miss is reported as ErrNotFound.
type ReviewAggregateCache interface {
	Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error)
	Set(ctx context.Context, aggregate *entity.ReviewAggregate, ttl time.Duration) error
	Delete(ctx context.Context, targetType entity.ReviewTargetType, targetID string) error
}

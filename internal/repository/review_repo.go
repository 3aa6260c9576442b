package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type ReviewRepository interface {
	// Create persists a new review. Returns ErrAlreadyExists when the
	// reviewer already reviewed this target.
	Create(ctx context.Context, review *entity.Review) error
	GetByID(ctx context.Context, reviewID string) (*entity.Review, error)
	ListByTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) ([]entity.Review, error)

	// AdjustReactionCounters applies atomic increments to the helpful and
	// unhelpful counters. Deltas are each -1, 0 or +1.
	AdjustReactionCounters(ctx context.Context, reviewID string, helpfulDelta, unhelpfulDelta int64) error

	// MarkRemoved soft-removes a review so it stops counting toward the
	// target's aggregate. The record itself is kept.
	MarkRemoved(ctx context.Context, reviewID string) error

	// AggregateForTarget re-aggregates count and mean rating over all
	// non-removed reviews for the target.
	AggregateForTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (count int64, mean float64, err error)
}

type ReviewAggregateRepository interface {
	Save(ctx context.Context, aggregate *entity.ReviewAggregate) error
	Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error)
}

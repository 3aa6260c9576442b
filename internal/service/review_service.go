package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
)

const (
	natsSubjectReviewCreated     = "review.created"
	natsSubjectReviewRemoved     = "review.removed"
	natsSubjectFraudAlertCreated = "fraudalert.created"
)

type CreateReviewInput struct {
	TargetType       entity.ReviewTargetType
	TargetID         string
	ReviewerID       string
	Rating           int32
	Title            string
	Body             string
	VerifiedPurchase bool
	Images           []string
}

type ReviewService interface {
	CreateReview(ctx context.Context, input CreateReviewInput) (*entity.Review, error)
	React(ctx context.Context, reviewID, userID string, reactionType entity.ReactionType, value bool) (*entity.Review, error)
	Report(ctx context.Context, reviewID, reporterID, reason string) (*entity.FraudAlert, error)
	ListReviews(ctx context.Context, targetType entity.ReviewTargetType, targetID string) ([]entity.Review, error)
	GetAggregate(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error)
	// RemoveReview soft-removes a review and re-aggregates its target.
	// Reserved for the moderation gate.
	RemoveReview(ctx context.Context, reviewID string) error
}

type reviewService struct {
	reviewRepo        repository.ReviewRepository
	reactionRepo      repository.ReactionRepository
	reportRepo        repository.ReviewReportRepository
	aggregateRepo     repository.ReviewAggregateRepository
	aggregateCache    repository.ReviewAggregateCache
	alertRepo         repository.FraudAlertRepository
	msgPublisher      nats.MessagePublisher
	metrics           *metrics.Manager
	log               logger.Logger
	aggregateCacheTTL time.Duration
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	reactionRepo repository.ReactionRepository,
	reportRepo repository.ReviewReportRepository,
	aggregateRepo repository.ReviewAggregateRepository,
	aggregateCache repository.ReviewAggregateCache,
	alertRepo repository.FraudAlertRepository,
	msgPublisher nats.MessagePublisher,
	m *metrics.Manager,
	log logger.Logger,
	aggregateCacheTTL time.Duration,
) ReviewService {
	return &reviewService{
		reviewRepo:        reviewRepo,
		reactionRepo:      reactionRepo,
		reportRepo:        reportRepo,
		aggregateRepo:     aggregateRepo,
		aggregateCache:    aggregateCache,
		alertRepo:         alertRepo,
		msgPublisher:      msgPublisher,
		metrics:           m,
		log:               log,
		aggregateCacheTTL: aggregateCacheTTL,
	}
}

func (s *reviewService) CreateReview(ctx context.Context, input CreateReviewInput) (*entity.Review, error) {
	review, err := entity.NewReview(input.TargetType, input.TargetID, input.ReviewerID, input.Rating, input.Title, input.Body, input.VerifiedPurchase, input.Images)
	if err != nil {
		return nil, err
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: reviewer %s already reviewed target %s/%s", entity.ErrConflict, input.ReviewerID, input.TargetType, input.TargetID)
		}
		s.log.Errorf("Failed to save review for target %s/%s: %v", input.TargetType, input.TargetID, err)
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	if err := s.reaggregate(ctx, input.TargetType, input.TargetID); err != nil {
		s.log.Warnf("Failed to re-aggregate ratings for target %s/%s: %v", input.TargetType, input.TargetID, err)
	}

	s.metrics.ReviewsCreatedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectReviewCreated, review); errPub != nil {
		s.log.Warnf("Failed to publish review created event for review %s: %v", review.ID, errPub)
	}

	s.log.Infof("Review %s created on target %s/%s by %s (rating %d)", review.ID, input.TargetType, input.TargetID, input.ReviewerID, input.Rating)
	return review, nil
}

// React toggles the user's reaction and keeps the review counters in step:
// each call adjusts a counter bucket by exactly one, switching buckets when
// the user changes their mind and clearing the record when value is false.
func (s *reviewService) React(ctx context.Context, reviewID, userID string, reactionType entity.ReactionType, value bool) (*entity.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: review %s", entity.ErrNotFound, reviewID)
		}
		return nil, fmt.Errorf("failed to retrieve review %s: %w", reviewID, err)
	}
	if review.Removed {
		return nil, fmt.Errorf("%w: review %s has been removed", entity.ErrConflict, reviewID)
	}

	existing, err := s.reactionRepo.Get(ctx, reviewID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing reaction: %w", err)
	}

	var helpfulDelta, unhelpfulDelta int64
	switch {
	case !value && existing == nil:
		// Nothing to withdraw.
		return review, nil
	case !value:
		if err := s.reactionRepo.Delete(ctx, reviewID, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to delete reaction: %w", err)
		}
		helpfulDelta, unhelpfulDelta = bucketDelta(existing.Type, -1)
	case existing == nil:
		reaction, err := entity.NewReaction(reviewID, userID, reactionType)
		if err != nil {
			return nil, err
		}
		if err := s.reactionRepo.Upsert(ctx, reaction); err != nil {
			return nil, fmt.Errorf("failed to save reaction: %w", err)
		}
		helpfulDelta, unhelpfulDelta = bucketDelta(reactionType, 1)
	case existing.Type == reactionType:
		// Same vote again; counters already reflect it.
		return review, nil
	default:
		existing.Type = reactionType
		if err := s.reactionRepo.Upsert(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to switch reaction: %w", err)
		}
		oldHelpful, oldUnhelpful := bucketDelta(otherReaction(reactionType), -1)
		newHelpful, newUnhelpful := bucketDelta(reactionType, 1)
		helpfulDelta = oldHelpful + newHelpful
		unhelpfulDelta = oldUnhelpful + newUnhelpful
	}

	if err := s.reviewRepo.AdjustReactionCounters(ctx, reviewID, helpfulDelta, unhelpfulDelta); err != nil {
		return nil, fmt.Errorf("failed to adjust reaction counters for review %s: %w", reviewID, err)
	}
	review.HelpfulCount += helpfulDelta
	review.UnhelpfulCount += unhelpfulDelta
	return review, nil
}

func bucketDelta(reactionType entity.ReactionType, delta int64) (helpful, unhelpful int64) {
	if reactionType == entity.ReactionHelpful {
		return delta, 0
	}
	return 0, delta
}

func otherReaction(reactionType entity.ReactionType) entity.ReactionType {
	if reactionType == entity.ReactionHelpful {
		return entity.ReactionUnhelpful
	}
	return entity.ReactionHelpful
}

func (s *reviewService) Report(ctx context.Context, reviewID, reporterID, reason string) (*entity.FraudAlert, error) {
	if _, err := s.reviewRepo.GetByID(ctx, reviewID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: review %s", entity.ErrNotFound, reviewID)
		}
		return nil, fmt.Errorf("failed to retrieve review %s: %w", reviewID, err)
	}

	report, err := entity.NewReviewReport(reviewID, reporterID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: user %s already reported review %s", entity.ErrConflict, reporterID, reviewID)
		}
		return nil, fmt.Errorf("failed to save review report: %w", err)
	}

	alert, err := entity.NewFraudAlert(entity.AlertTargetReview, reviewID, entity.AlertSeverityMedium, fmt.Sprintf("review reported by %s: %s", reporterID, reason))
	if err != nil {
		return nil, err
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.log.Errorf("Failed to create fraud alert for reported review %s: %v", reviewID, err)
		return nil, fmt.Errorf("failed to create fraud alert: %w", err)
	}

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectFraudAlertCreated, alert); errPub != nil {
		s.log.Warnf("Failed to publish fraud alert created event for alert %s: %v", alert.ID, errPub)
	}

	s.log.Infof("Review %s reported by %s, alert %s raised", reviewID, reporterID, alert.ID)
	return alert, nil
}

func (s *reviewService) ListReviews(ctx context.Context, targetType entity.ReviewTargetType, targetID string) ([]entity.Review, error) {
	reviews, err := s.reviewRepo.ListByTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for target %s/%s: %w", targetType, targetID, err)
	}
	return reviews, nil
}

func (s *reviewService) GetAggregate(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	cached, err := s.aggregateCache.Get(ctx, targetType, targetID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warnf("Aggregate cache read failed for target %s/%s: %v", targetType, targetID, err)
	}

	aggregate, err := s.aggregateRepo.Get(ctx, targetType, targetID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get aggregate for target %s/%s: %w", targetType, targetID, err)
		}
		aggregate, err = s.computeAggregate(ctx, targetType, targetID)
		if err != nil {
			return nil, err
		}
	}

	if errCache := s.aggregateCache.Set(ctx, aggregate, s.aggregateCacheTTL); errCache != nil {
		s.log.Warnf("Aggregate cache write failed for target %s/%s: %v", targetType, targetID, errCache)
	}
	return aggregate, nil
}

func (s *reviewService) RemoveReview(ctx context.Context, reviewID string) error {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: review %s", entity.ErrNotFound, reviewID)
		}
		return fmt.Errorf("failed to retrieve review %s: %w", reviewID, err)
	}

	if err := s.reviewRepo.MarkRemoved(ctx, reviewID); err != nil {
		return fmt.Errorf("failed to remove review %s: %w", reviewID, err)
	}
	if err := s.reaggregate(ctx, review.TargetType, review.TargetID); err != nil {
		s.log.Warnf("Failed to re-aggregate ratings for target %s/%s after removal: %v", review.TargetType, review.TargetID, err)
	}

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectReviewRemoved, map[string]interface{}{
		"review_id":   reviewID,
		"target_type": review.TargetType,
		"target_id":   review.TargetID,
	}); errPub != nil {
		s.log.Warnf("Failed to publish review removed event for review %s: %v", reviewID, errPub)
	}

	s.log.Infof("Review %s removed by moderation", reviewID)
	return nil
}

func (s *reviewService) reaggregate(ctx context.Context, targetType entity.ReviewTargetType, targetID string) error {
	if _, err := s.computeAggregate(ctx, targetType, targetID); err != nil {
		return err
	}
	if err := s.aggregateCache.Delete(ctx, targetType, targetID); err != nil {
		s.log.Warnf("Aggregate cache invalidation failed for target %s/%s: %v", targetType, targetID, err)
	}
	return nil
}

func (s *reviewService) computeAggregate(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	count, mean, err := s.reviewRepo.AggregateForTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews for target %s/%s: %w", targetType, targetID, err)
	}

	aggregate := &entity.ReviewAggregate{
		TargetType: targetType,
		TargetID:   targetID,
		Count:      count,
		Mean:       entity.RoundMean(mean),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.aggregateRepo.Save(ctx, aggregate); err != nil {
		return nil, fmt.Errorf("failed to save aggregate for target %s/%s: %w", targetType, targetID, err)
	}
	return aggregate, nil
}

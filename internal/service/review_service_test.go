package service

import (
	"context"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type reviewServiceMocks struct {
	reviewRepo    *MockReviewRepository
	reactionRepo  *MockReactionRepository
	reportRepo    *MockReviewReportRepository
	aggregateRepo *MockReviewAggregateRepository
	cache         *MockAggregateCache
	alertRepo     *MockFraudAlertRepository
}

func newReviewServiceForTest() (ReviewService, *reviewServiceMocks) {
	m := &reviewServiceMocks{
		reviewRepo:    new(MockReviewRepository),
		reactionRepo:  new(MockReactionRepository),
		reportRepo:    new(MockReviewReportRepository),
		aggregateRepo: new(MockReviewAggregateRepository),
		cache:         new(MockAggregateCache),
		alertRepo:     new(MockFraudAlertRepository),
	}
	svc := NewReviewService(m.reviewRepo, m.reactionRepo, m.reportRepo, m.aggregateRepo, m.cache, m.alertRepo, newQuietPublisher(), metrics.NewManager("test"), logger.NewNoOp(), 10*time.Minute)
	return svc, m
}

func mustReview(t *testing.T, reviewerID string, rating int32) *entity.Review {
	t.Helper()
	review, err := entity.NewReview(entity.ReviewTargetItem, "listing1", reviewerID, rating, "Solid bike", "Rides great", true, nil)
	assert.NoError(t, err)
	return review
}

func TestReviewService_CreateReview_Success(t *testing.T) {
	svc, m := newReviewServiceForTest()

	m.reviewRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *entity.Review) bool {
		return r.TargetID == "listing1" && r.ReviewerID == "user1" && r.Rating == int32(5) && !r.Removed
	})).Return(nil).Once()
	m.reviewRepo.On("AggregateForTarget", mock.Anything, entity.ReviewTargetItem, "listing1").Return(int64(1), 5.0, nil).Once()
	m.aggregateRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *entity.ReviewAggregate) bool {
		return a.Count == 1 && a.Mean == 5.0
	})).Return(nil).Once()
	m.cache.On("Delete", mock.Anything, entity.ReviewTargetItem, "listing1").Return(nil).Once()

	review, err := svc.CreateReview(context.Background(), CreateReviewInput{
		TargetType:       entity.ReviewTargetItem,
		TargetID:         "listing1",
		ReviewerID:       "user1",
		Rating:           5,
		Title:            "Solid bike",
		Body:             "Rides great",
		VerifiedPurchase: true,
	})

	assert.NoError(t, err)
	assert.NotNil(t, review)
	m.reviewRepo.AssertExpectations(t)
	m.aggregateRepo.AssertExpectations(t)
	m.cache.AssertExpectations(t)
}

func TestReviewService_CreateReview_DuplicateReviewer(t *testing.T) {
	svc, m := newReviewServiceForTest()

	m.reviewRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists).Once()

	review, err := svc.CreateReview(context.Background(), CreateReviewInput{
		TargetType: entity.ReviewTargetItem,
		TargetID:   "listing1",
		ReviewerID: "user1",
		Rating:     4,
		Body:       "second thoughts",
	})

	assert.Nil(t, review)
	assert.ErrorIs(t, err, entity.ErrConflict)
	m.reviewRepo.AssertNotCalled(t, "AggregateForTarget", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_CreateReview_RatingOutOfRange(t *testing.T) {
	svc, _ := newReviewServiceForTest()

	for _, rating := range []int32{0, 6, -1} {
		review, err := svc.CreateReview(context.Background(), CreateReviewInput{
			TargetType: entity.ReviewTargetUser,
			TargetID:   "seller1",
			ReviewerID: "user1",
			Rating:     rating,
		})
		assert.Nil(t, review)
		assert.ErrorIs(t, err, entity.ErrValidation)
	}
}

func TestReviewService_React_Toggle(t *testing.T) {
	svc, m := newReviewServiceForTest()

	review := mustReview(t, "author1", 5)
	m.reviewRepo.On("GetByID", mock.Anything, review.ID).Return(review, nil)

	// First helpful vote.
	m.reactionRepo.On("Get", mock.Anything, review.ID, "user2").Return(nil, repository.ErrNotFound).Once()
	m.reactionRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(r *entity.Reaction) bool {
		return r.Type == entity.ReactionHelpful && r.UserID == "user2"
	})).Return(nil).Once()
	m.reviewRepo.On("AdjustReactionCounters", mock.Anything, review.ID, int64(1), int64(0)).Return(nil).Once()

	updated, err := svc.React(context.Background(), review.ID, "user2", entity.ReactionHelpful, true)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), updated.HelpfulCount)

	// Same vote again is a no-op.
	existing, err := entity.NewReaction(review.ID, "user2", entity.ReactionHelpful)
	assert.NoError(t, err)
	m.reactionRepo.On("Get", mock.Anything, review.ID, "user2").Return(existing, nil).Once()

	_, err = svc.React(context.Background(), review.ID, "user2", entity.ReactionHelpful, true)
	assert.NoError(t, err)

	// Switching to unhelpful moves the count between buckets.
	m.reactionRepo.On("Get", mock.Anything, review.ID, "user2").Return(existing, nil).Once()
	m.reactionRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(r *entity.Reaction) bool {
		return r.Type == entity.ReactionUnhelpful
	})).Return(nil).Once()
	m.reviewRepo.On("AdjustReactionCounters", mock.Anything, review.ID, int64(-1), int64(1)).Return(nil).Once()

	_, err = svc.React(context.Background(), review.ID, "user2", entity.ReactionUnhelpful, true)
	assert.NoError(t, err)

	// Withdrawing clears the record and the counter.
	m.reactionRepo.On("Get", mock.Anything, review.ID, "user2").Return(existing, nil).Once()
	m.reactionRepo.On("Delete", mock.Anything, review.ID, "user2").Return(nil).Once()
	m.reviewRepo.On("AdjustReactionCounters", mock.Anything, review.ID, int64(0), int64(-1)).Return(nil).Once()

	_, err = svc.React(context.Background(), review.ID, "user2", entity.ReactionUnhelpful, false)
	assert.NoError(t, err)

	m.reactionRepo.AssertExpectations(t)
	m.reviewRepo.AssertExpectations(t)
}

func TestReviewService_React_WithdrawWithoutVote(t *testing.T) {
	svc, m := newReviewServiceForTest()

	review := mustReview(t, "author1", 4)
	m.reviewRepo.On("GetByID", mock.Anything, review.ID).Return(review, nil).Once()
	m.reactionRepo.On("Get", mock.Anything, review.ID, "user2").Return(nil, repository.ErrNotFound).Once()

	updated, err := svc.React(context.Background(), review.ID, "user2", entity.ReactionHelpful, false)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated.HelpfulCount)
	m.reviewRepo.AssertNotCalled(t, "AdjustReactionCounters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_Report_RaisesOneAlert(t *testing.T) {
	svc, m := newReviewServiceForTest()

	review := mustReview(t, "author1", 1)
	m.reviewRepo.On("GetByID", mock.Anything, review.ID).Return(review, nil).Once()
	m.reportRepo.On("Create", mock.Anything, mock.MatchedBy(func(r *entity.ReviewReport) bool {
		return r.ReviewID == review.ID && r.ReporterID == "user3"
	})).Return(nil).Once()
	m.alertRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *entity.FraudAlert) bool {
		return a.TargetType == entity.AlertTargetReview && a.TargetID == review.ID && a.Severity == entity.AlertSeverityMedium && a.Status == entity.AlertStatusNew
	})).Return(nil).Once()

	alert, err := svc.Report(context.Background(), review.ID, "user3", "spam content")

	assert.NoError(t, err)
	assert.NotNil(t, alert)
	m.reportRepo.AssertExpectations(t)
	m.alertRepo.AssertExpectations(t)
}

func TestReviewService_Report_DuplicateReporter(t *testing.T) {
	svc, m := newReviewServiceForTest()

	review := mustReview(t, "author1", 1)
	m.reviewRepo.On("GetByID", mock.Anything, review.ID).Return(review, nil).Once()
	m.reportRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists).Once()

	alert, err := svc.Report(context.Background(), review.ID, "user3", "spam content")

	assert.Nil(t, alert)
	assert.ErrorIs(t, err, entity.ErrConflict)
	m.alertRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_GetAggregate_CacheHit(t *testing.T) {
	svc, m := newReviewServiceForTest()

	cached := &entity.ReviewAggregate{TargetType: entity.ReviewTargetItem, TargetID: "listing1", Count: 4, Mean: 3.75}
	m.cache.On("Get", mock.Anything, entity.ReviewTargetItem, "listing1").Return(cached, nil).Once()

	aggregate, err := svc.GetAggregate(context.Background(), entity.ReviewTargetItem, "listing1")

	assert.NoError(t, err)
	assert.Equal(t, cached, aggregate)
	m.aggregateRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_GetAggregate_CacheMissFallsThrough(t *testing.T) {
	svc, m := newReviewServiceForTest()

	stored := &entity.ReviewAggregate{TargetType: entity.ReviewTargetItem, TargetID: "listing1", Count: 2, Mean: 4.5}
	m.cache.On("Get", mock.Anything, entity.ReviewTargetItem, "listing1").Return(nil, repository.ErrNotFound).Once()
	m.aggregateRepo.On("Get", mock.Anything, entity.ReviewTargetItem, "listing1").Return(stored, nil).Once()
	m.cache.On("Set", mock.Anything, stored, 10*time.Minute).Return(nil).Once()

	aggregate, err := svc.GetAggregate(context.Background(), entity.ReviewTargetItem, "listing1")

	assert.NoError(t, err)
	assert.Equal(t, stored, aggregate)
	m.cache.AssertExpectations(t)
}

func TestReviewService_RemoveReview_Reaggregates(t *testing.T) {
	svc, m := newReviewServiceForTest()

	review := mustReview(t, "author1", 1)
	m.reviewRepo.On("GetByID", mock.Anything, review.ID).Return(review, nil).Once()
	m.reviewRepo.On("MarkRemoved", mock.Anything, review.ID).Return(nil).Once()
	m.reviewRepo.On("AggregateForTarget", mock.Anything, entity.ReviewTargetItem, "listing1").Return(int64(0), 0.0, nil).Once()
	m.aggregateRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *entity.ReviewAggregate) bool {
		return a.Count == 0 && a.Mean == 0
	})).Return(nil).Once()
	m.cache.On("Delete", mock.Anything, entity.ReviewTargetItem, "listing1").Return(nil).Once()

	err := svc.RemoveReview(context.Background(), review.ID)

	assert.NoError(t, err)
	m.reviewRepo.AssertExpectations(t)
	m.cache.AssertExpectations(t)
}

func TestRoundMean(t *testing.T) {
	assert.Equal(t, 3.67, entity.RoundMean(11.0/3.0))
	assert.Equal(t, 4.5, entity.RoundMean(4.5))
	assert.Equal(t, 0.0, entity.RoundMean(0))
}

package service

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}

func (m *MockListingRepository) ListActiveBySeller(ctx context.Context, sellerID string) ([]entity.Listing, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}

func (m *MockListingRepository) MarkSold(ctx context.Context, listingID, buyerID string) error {
	args := m.Called(ctx, listingID, buyerID)
	return args.Error(0)
}

func (m *MockListingRepository) Relist(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingRepository) ForceRemove(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *entity.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

func (m *MockOfferRepository) GetByID(ctx context.Context, offerID string) (*entity.Offer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) ListByListing(ctx context.Context, listingID string) ([]entity.Offer, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) HasPendingForBuyer(ctx context.Context, listingID, buyerID string) (bool, error) {
	args := m.Called(ctx, listingID, buyerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) UpdateStatus(ctx context.Context, params repository.UpdateOfferStatusParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockOfferRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetOpenByListing(ctx context.Context, listingID string) (*entity.Transaction, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, transaction *entity.Transaction, expectedVersion int64) error {
	args := m.Called(ctx, transaction, expectedVersion)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *entity.TransactionMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, messageID string) (*entity.TransactionMessage, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TransactionMessage), args.Error(1)
}

func (m *MockMessageRepository) ListByTransaction(ctx context.Context, transactionID string) ([]entity.TransactionMessage, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TransactionMessage), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, messageID string, readAt time.Time) error {
	args := m.Called(ctx, messageID, readAt)
	return args.Error(0)
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, reviewID string) (*entity.Review, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewRepository) ListByTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) ([]entity.Review, error) {
	args := m.Called(ctx, targetType, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) AdjustReactionCounters(ctx context.Context, reviewID string, helpfulDelta, unhelpfulDelta int64) error {
	args := m.Called(ctx, reviewID, helpfulDelta, unhelpfulDelta)
	return args.Error(0)
}

func (m *MockReviewRepository) MarkRemoved(ctx context.Context, reviewID string) error {
	args := m.Called(ctx, reviewID)
	return args.Error(0)
}

func (m *MockReviewRepository) AggregateForTarget(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (int64, float64, error) {
	args := m.Called(ctx, targetType, targetID)
	return args.Get(0).(int64), args.Get(1).(float64), args.Error(2)
}

type MockReviewAggregateRepository struct {
	mock.Mock
}

func (m *MockReviewAggregateRepository) Save(ctx context.Context, aggregate *entity.ReviewAggregate) error {
	args := m.Called(ctx, aggregate)
	return args.Error(0)
}

func (m *MockReviewAggregateRepository) Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	args := m.Called(ctx, targetType, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewAggregate), args.Error(1)
}

type MockReactionRepository struct {
	mock.Mock
}

func (m *MockReactionRepository) Get(ctx context.Context, reviewID, userID string) (*entity.Reaction, error) {
	args := m.Called(ctx, reviewID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Reaction), args.Error(1)
}

func (m *MockReactionRepository) Upsert(ctx context.Context, reaction *entity.Reaction) error {
	args := m.Called(ctx, reaction)
	return args.Error(0)
}

func (m *MockReactionRepository) Delete(ctx context.Context, reviewID, userID string) error {
	args := m.Called(ctx, reviewID, userID)
	return args.Error(0)
}

type MockReviewReportRepository struct {
	mock.Mock
}

func (m *MockReviewReportRepository) Create(ctx context.Context, report *entity.ReviewReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReviewReportRepository) ListByReview(ctx context.Context, reviewID string) ([]entity.ReviewReport, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ReviewReport), args.Error(1)
}

type MockFraudAlertRepository struct {
	mock.Mock
}

func (m *MockFraudAlertRepository) Create(ctx context.Context, alert *entity.FraudAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockFraudAlertRepository) GetByID(ctx context.Context, alertID string) (*entity.FraudAlert, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.FraudAlert), args.Error(1)
}

func (m *MockFraudAlertRepository) ListOpen(ctx context.Context) ([]entity.FraudAlert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FraudAlert), args.Error(1)
}

func (m *MockFraudAlertRepository) Update(ctx context.Context, alert *entity.FraudAlert, expectedVersion int64) error {
	args := m.Called(ctx, alert, expectedVersion)
	return args.Error(0)
}

type MockAggregateCache struct {
	mock.Mock
}

func (m *MockAggregateCache) Get(ctx context.Context, targetType entity.ReviewTargetType, targetID string) (*entity.ReviewAggregate, error) {
	args := m.Called(ctx, targetType, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ReviewAggregate), args.Error(1)
}

func (m *MockAggregateCache) Set(ctx context.Context, aggregate *entity.ReviewAggregate, ttl time.Duration) error {
	args := m.Called(ctx, aggregate, ttl)
	return args.Error(0)
}

func (m *MockAggregateCache) Delete(ctx context.Context, targetType entity.ReviewTargetType, targetID string) error {
	args := m.Called(ctx, targetType, targetID)
	return args.Error(0)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, subject string, message interface{}) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}

func (m *MockMessagePublisher) PublishRaw(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// newQuietPublisher returns a publisher mock that swallows every event.
// Tests that assert on published subjects build their own.
func newQuietPublisher() *MockMessagePublisher {
	pub := new(MockMessagePublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return pub
}

// fakeTransactor runs the function directly; the storage transaction
// semantics themselves are covered by the mongo adapter.
type fakeTransactor struct{}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

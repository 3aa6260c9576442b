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

func newOfferServiceForTest(offerRepo *MockOfferRepository, listingRepo *MockListingRepository, transactionRepo *MockTransactionRepository) OfferService {
	return NewOfferService(offerRepo, listingRepo, transactionRepo, &fakeTransactor{}, newQuietPublisher(), metrics.NewManager("test"), logger.NewNoOp())
}

func mustListing(t *testing.T, sellerID string) *entity.Listing {
	t.Helper()
	listing, err := entity.NewListing(sellerID, "Vintage road bike", "bikes", 350)
	assert.NoError(t, err)
	return listing
}

func mustOffer(t *testing.T, listingID, buyerID, sellerID string, amount float64) *entity.Offer {
	t.Helper()
	offer, err := entity.NewOffer(listingID, buyerID, sellerID, amount, "", time.Now().UTC().Add(24*time.Hour))
	assert.NoError(t, err)
	return offer
}

func TestOfferService_CreateOffer_Success(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	mockListingRepo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil).Once()
	mockOfferRepo.On("HasPendingForBuyer", mock.Anything, listing.ID, "buyer1").Return(false, nil).Once()
	mockOfferRepo.On("Create", mock.Anything, mock.MatchedBy(func(o *entity.Offer) bool {
		return o.ListingID == listing.ID && o.BuyerID == "buyer1" && o.SellerID == "seller1" && o.Status == entity.OfferStatusPending && o.ProposedBy == "buyer1"
	})).Return(nil).Once()

	offer, err := svc.CreateOffer(context.Background(), CreateOfferInput{
		ListingID: listing.ID,
		BuyerID:   "buyer1",
		Amount:    300,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})

	assert.NoError(t, err)
	assert.NotNil(t, offer)
	assert.Equal(t, entity.OfferStatusPending, offer.Status)
	mockOfferRepo.AssertExpectations(t)
	mockListingRepo.AssertExpectations(t)
}

func TestOfferService_CreateOffer_DuplicatePending(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	mockListingRepo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil).Once()
	mockOfferRepo.On("HasPendingForBuyer", mock.Anything, listing.ID, "buyer1").Return(true, nil).Once()

	offer, err := svc.CreateOffer(context.Background(), CreateOfferInput{
		ListingID: listing.ID,
		BuyerID:   "buyer1",
		Amount:    300,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})

	assert.Nil(t, offer)
	assert.ErrorIs(t, err, entity.ErrConflict)
	mockOfferRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOfferService_CreateOffer_DuplicatePendingRace(t *testing.T) {
	// The pre-check misses the competing offer; the unique index catches it.
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	mockListingRepo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil).Once()
	mockOfferRepo.On("HasPendingForBuyer", mock.Anything, listing.ID, "buyer1").Return(false, nil).Once()
	mockOfferRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists).Once()

	offer, err := svc.CreateOffer(context.Background(), CreateOfferInput{
		ListingID: listing.ID,
		BuyerID:   "buyer1",
		Amount:    300,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})

	assert.Nil(t, offer)
	assert.ErrorIs(t, err, entity.ErrConflict)
	mockOfferRepo.AssertExpectations(t)
}

func TestOfferService_CreateOffer_ListingNotActive(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	listing.Status = entity.ListingStatusSold
	mockListingRepo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil).Once()

	offer, err := svc.CreateOffer(context.Background(), CreateOfferInput{
		ListingID: listing.ID,
		BuyerID:   "buyer1",
		Amount:    300,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})

	assert.Nil(t, offer)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestOfferService_RespondToOffer_AcceptCreatesTransaction(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	offer := mustOffer(t, listing.ID, "buyer1", "seller1", 300)

	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Once()
	mockListingRepo.On("MarkSold", mock.Anything, listing.ID, "buyer1").Return(nil).Once()
	mockOfferRepo.On("UpdateStatus", mock.Anything, repository.UpdateOfferStatusParams{
		OfferID: offer.ID,
		Status:  entity.OfferStatusAccepted,
		Version: 1,
	}).Return(nil).Once()
	mockTransactionRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *entity.Transaction) bool {
		return tx.ListingID == listing.ID && tx.OfferID == offer.ID && tx.BuyerID == "buyer1" && tx.SellerID == "seller1" && tx.Amount == 300 && tx.Status == entity.TransactionStatusPending
	})).Return(nil).Once()

	result, err := svc.RespondToOffer(context.Background(), offer.ID, "seller1", OfferActionAccept, 0, "")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, entity.OfferStatusAccepted, result.Offer.Status)
	assert.NotNil(t, result.Transaction)
	assert.Nil(t, result.CounterOffer)
	mockOfferRepo.AssertExpectations(t)
	mockListingRepo.AssertExpectations(t)
	mockTransactionRepo.AssertExpectations(t)
}

func TestOfferService_RespondToOffer_AcceptLosesListingRace(t *testing.T) {
	// A competing acceptance sold the listing first: the guarded write
	// misses, the whole step rolls back and nothing else is written.
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	offer := mustOffer(t, listing.ID, "buyer1", "seller1", 300)

	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Once()
	mockListingRepo.On("MarkSold", mock.Anything, listing.ID, "buyer1").Return(repository.ErrStateConflict).Once()

	result, err := svc.RespondToOffer(context.Background(), offer.ID, "seller1", OfferActionAccept, 0, "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, entity.ErrConflict)
	mockOfferRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	mockTransactionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOfferService_RespondToOffer_ClosedOfferReadsAsNotFound(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	offer := mustOffer(t, "listing1", "buyer1", "seller1", 300)
	offer.Status = entity.OfferStatusRejected
	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Once()

	result, err := svc.RespondToOffer(context.Background(), offer.ID, "seller1", OfferActionAccept, 0, "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestOfferService_RespondToOffer_OnlyRecipientMayRespond(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	offer := mustOffer(t, "listing1", "buyer1", "seller1", 300)
	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Twice()

	// The buyer proposed the current terms, so the buyer may not respond.
	result, err := svc.RespondToOffer(context.Background(), offer.ID, "buyer1", OfferActionAccept, 0, "")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	// Neither may a stranger.
	result, err = svc.RespondToOffer(context.Background(), offer.ID, "someoneelse", OfferActionReject, 0, "")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestOfferService_RespondToOffer_ExpiredButUnswept(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	offer := mustOffer(t, "listing1", "buyer1", "seller1", 300)
	offer.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Once()

	result, err := svc.RespondToOffer(context.Background(), offer.ID, "seller1", OfferActionAccept, 0, "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, entity.ErrConflict)
	mockListingRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything, mock.Anything)
}

func TestOfferService_RespondToOffer_CounterFlipsProposer(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	offer := mustOffer(t, "listing1", "buyer1", "seller1", 300)
	mockOfferRepo.On("GetByID", mock.Anything, offer.ID).Return(offer, nil).Once()
	mockOfferRepo.On("UpdateStatus", mock.Anything, repository.UpdateOfferStatusParams{
		OfferID: offer.ID,
		Status:  entity.OfferStatusCountered,
		Version: 1,
	}).Return(nil).Once()
	mockOfferRepo.On("Create", mock.Anything, mock.MatchedBy(func(o *entity.Offer) bool {
		return o.CounterOf == offer.ID && o.ProposedBy == "seller1" && o.BuyerID == "buyer1" && o.SellerID == "seller1" && o.Amount == 325 && o.Status == entity.OfferStatusPending
	})).Return(nil).Once()

	result, err := svc.RespondToOffer(context.Background(), offer.ID, "seller1", OfferActionCounter, 325, "meet in the middle")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, entity.OfferStatusCountered, result.Offer.Status)
	assert.NotNil(t, result.CounterOffer)
	// The buyer is now the recipient of the countered terms.
	assert.Equal(t, "buyer1", result.CounterOffer.RecipientID())
	assert.Nil(t, result.Transaction)
	mockOfferRepo.AssertExpectations(t)
}

func TestOfferService_ExpireOffers(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	now := time.Now().UTC()
	mockOfferRepo.On("ExpireDue", mock.Anything, now).Return(int64(3), nil).Once()

	expired, err := svc.ExpireOffers(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), expired)
	mockOfferRepo.AssertExpectations(t)
}

func TestOfferService_ListOffersForListing_SellerOnly(t *testing.T) {
	mockOfferRepo := new(MockOfferRepository)
	mockListingRepo := new(MockListingRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	svc := newOfferServiceForTest(mockOfferRepo, mockListingRepo, mockTransactionRepo)

	listing := mustListing(t, "seller1")
	mockListingRepo.On("GetByID", mock.Anything, listing.ID).Return(listing, nil).Once()

	offers, err := svc.ListOffersForListing(context.Background(), listing.ID, "buyer1")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, entity.ErrForbidden)
	mockOfferRepo.AssertNotCalled(t, "ListByListing", mock.Anything, mock.Anything)
}

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
	natsSubjectOfferCreated   = "offer.created"
	natsSubjectOfferAccepted  = "offer.accepted"
	natsSubjectOfferRejected  = "offer.rejected"
	natsSubjectOfferCountered = "offer.countered"
)

type OfferAction string

const (
	OfferActionAccept  OfferAction = "accept"
	OfferActionReject  OfferAction = "reject"
	OfferActionCounter OfferAction = "counter"
)

type CreateOfferInput struct {
	ListingID string
	BuyerID   string
	Amount    float64
	Note      string
	ExpiresAt time.Time
}

// RespondToOfferResult carries the entities touched by a response: the closed
// or accepted offer, the counter-offer if one was opened, and the transaction
// if the offer was accepted.
type RespondToOfferResult struct {
	Offer        *entity.Offer
	CounterOffer *entity.Offer
	Transaction  *entity.Transaction
}

type OfferService interface {
	CreateOffer(ctx context.Context, input CreateOfferInput) (*entity.Offer, error)
	RespondToOffer(ctx context.Context, offerID, actorID string, action OfferAction, counterAmount float64, counterNote string) (*RespondToOfferResult, error)
	ExpireOffers(ctx context.Context, now time.Time) (int64, error)
	GetOffer(ctx context.Context, offerID, actorID string) (*entity.Offer, error)
	ListOffersForListing(ctx context.Context, listingID, actorID string) ([]entity.Offer, error)
}

type offerService struct {
	offerRepo       repository.OfferRepository
	listingRepo     repository.ListingRepository
	transactionRepo repository.TransactionRepository
	transactor      repository.Transactor
	msgPublisher    nats.MessagePublisher
	metrics         *metrics.Manager
	log             logger.Logger
}

func NewOfferService(
	offerRepo repository.OfferRepository,
	listingRepo repository.ListingRepository,
	transactionRepo repository.TransactionRepository,
	transactor repository.Transactor,
	msgPublisher nats.MessagePublisher,
	m *metrics.Manager,
	log logger.Logger,
) OfferService {
	return &offerService{
		offerRepo:       offerRepo,
		listingRepo:     listingRepo,
		transactionRepo: transactionRepo,
		transactor:      transactor,
		msgPublisher:    msgPublisher,
		metrics:         m,
		log:             log,
	}
}

func (s *offerService) CreateOffer(ctx context.Context, input CreateOfferInput) (*entity.Offer, error) {
	listing, err := s.listingRepo.GetByID(ctx, input.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: listing %s", entity.ErrNotFound, input.ListingID)
		}
		return nil, fmt.Errorf("failed to retrieve listing %s: %w", input.ListingID, err)
	}
	if !listing.IsActive() {
		return nil, fmt.Errorf("%w: listing %s is %s", entity.ErrConflict, listing.ID, listing.Status)
	}

	offer, err := entity.NewOffer(input.ListingID, input.BuyerID, listing.SellerID, input.Amount, input.Note, input.ExpiresAt)
	if err != nil {
		return nil, err
	}

	pending, err := s.offerRepo.HasPendingForBuyer(ctx, input.ListingID, input.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending offers: %w", err)
	}
	if pending {
		return nil, fmt.Errorf("%w: buyer %s already has a pending offer on listing %s", entity.ErrConflict, input.BuyerID, input.ListingID)
	}

	// The unique pending-offer index backs up the check above under races.
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: buyer %s already has a pending offer on listing %s", entity.ErrConflict, input.BuyerID, input.ListingID)
		}
		s.log.Errorf("Failed to save offer for listing %s: %v", input.ListingID, err)
		return nil, fmt.Errorf("failed to save offer: %w", err)
	}

	s.metrics.OffersCreatedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectOfferCreated, offer); errPub != nil {
		s.log.Warnf("Failed to publish offer created event for offer %s: %v", offer.ID, errPub)
	}

	s.log.Infof("Offer %s created on listing %s by buyer %s for %.2f", offer.ID, input.ListingID, input.BuyerID, input.Amount)
	return offer, nil
}

func (s *offerService) RespondToOffer(ctx context.Context, offerID, actorID string, action OfferAction, counterAmount float64, counterNote string) (*RespondToOfferResult, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: offer %s", entity.ErrNotFound, offerID)
		}
		return nil, fmt.Errorf("failed to retrieve offer %s: %w", offerID, err)
	}
	if !offer.IsOpen() {
		return nil, fmt.Errorf("%w: offer %s is %s", entity.ErrNotFound, offerID, offer.Status)
	}
	if actorID != offer.RecipientID() {
		return nil, fmt.Errorf("%w: user %s may not respond to offer %s", entity.ErrForbidden, actorID, offerID)
	}
	if !offer.ExpiresAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: offer %s has expired", entity.ErrConflict, offerID)
	}

	switch action {
	case OfferActionAccept:
		return s.accept(ctx, offer)
	case OfferActionReject:
		return s.reject(ctx, offer)
	case OfferActionCounter:
		return s.counter(ctx, offer, actorID, counterAmount, counterNote)
	default:
		return nil, fmt.Errorf("%w: unknown offer action %q", entity.ErrValidation, action)
	}
}

// accept is the critical compare-and-set point: the listing's active→sold
// write, the offer's accepted write and the transaction creation land in one
// storage transaction. If a competing acceptance already sold the listing,
// the guarded write misses and the caller gets a conflict with nothing
// changed.
func (s *offerService) accept(ctx context.Context, offer *entity.Offer) (*RespondToOfferResult, error) {
	transaction, err := entity.NewTransaction(offer.ListingID, offer.ID, offer.BuyerID, offer.SellerID, offer.Amount)
	if err != nil {
		return nil, err
	}

	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.listingRepo.MarkSold(txCtx, offer.ListingID, offer.BuyerID); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return fmt.Errorf("%w: listing %s is no longer available", entity.ErrConflict, offer.ListingID)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: listing %s", entity.ErrNotFound, offer.ListingID)
			}
			return fmt.Errorf("failed to mark listing %s sold: %w", offer.ListingID, err)
		}

		if err := s.offerRepo.UpdateStatus(txCtx, repository.UpdateOfferStatusParams{
			OfferID: offer.ID,
			Status:  entity.OfferStatusAccepted,
			Version: offer.Version,
		}); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return fmt.Errorf("%w: offer %s was modified concurrently", entity.ErrConflict, offer.ID)
			}
			return fmt.Errorf("failed to accept offer %s: %w", offer.ID, err)
		}

		if err := s.transactionRepo.Create(txCtx, transaction); err != nil {
			return fmt.Errorf("failed to create transaction for offer %s: %w", offer.ID, err)
		}
		return nil
	})
	if err != nil {
		s.log.Warnf("Offer %s acceptance failed: %v", offer.ID, err)
		return nil, err
	}

	offer.Status = entity.OfferStatusAccepted
	offer.Version++

	s.metrics.OffersAcceptedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectOfferAccepted, map[string]interface{}{
		"offer_id":       offer.ID,
		"listing_id":     offer.ListingID,
		"transaction_id": transaction.ID,
		"buyer_id":       offer.BuyerID,
		"seller_id":      offer.SellerID,
		"amount":         offer.Amount,
	}); errPub != nil {
		s.log.Warnf("Failed to publish offer accepted event for offer %s: %v", offer.ID, errPub)
	}

	s.log.Infof("Offer %s accepted, listing %s sold, transaction %s created", offer.ID, offer.ListingID, transaction.ID)
	return &RespondToOfferResult{Offer: offer, Transaction: transaction}, nil
}

func (s *offerService) reject(ctx context.Context, offer *entity.Offer) (*RespondToOfferResult, error) {
	err := s.offerRepo.UpdateStatus(ctx, repository.UpdateOfferStatusParams{
		OfferID: offer.ID,
		Status:  entity.OfferStatusRejected,
		Version: offer.Version,
	})
	if err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, fmt.Errorf("%w: offer %s was modified concurrently", entity.ErrConflict, offer.ID)
		}
		return nil, fmt.Errorf("failed to reject offer %s: %w", offer.ID, err)
	}
	offer.Status = entity.OfferStatusRejected
	offer.Version++

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectOfferRejected, offer); errPub != nil {
		s.log.Warnf("Failed to publish offer rejected event for offer %s: %v", offer.ID, errPub)
	}

	s.log.Infof("Offer %s rejected", offer.ID)
	return &RespondToOfferResult{Offer: offer}, nil
}

func (s *offerService) counter(ctx context.Context, offer *entity.Offer, actorID string, counterAmount float64, counterNote string) (*RespondToOfferResult, error) {
	counterOffer, err := offer.Counter(actorID, counterAmount, counterNote, time.Time{})
	if err != nil {
		return nil, err
	}

	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.offerRepo.UpdateStatus(txCtx, repository.UpdateOfferStatusParams{
			OfferID: offer.ID,
			Status:  entity.OfferStatusCountered,
			Version: offer.Version,
		}); err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return fmt.Errorf("%w: offer %s was modified concurrently", entity.ErrConflict, offer.ID)
			}
			return fmt.Errorf("failed to close countered offer %s: %w", offer.ID, err)
		}
		if err := s.offerRepo.Create(txCtx, counterOffer); err != nil {
			return fmt.Errorf("failed to create counter-offer for offer %s: %w", offer.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	offer.Status = entity.OfferStatusCountered
	offer.Version++

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectOfferCountered, map[string]interface{}{
		"offer_id":         offer.ID,
		"counter_offer_id": counterOffer.ID,
		"listing_id":       offer.ListingID,
		"amount":           counterOffer.Amount,
		"proposed_by":      counterOffer.ProposedBy,
	}); errPub != nil {
		s.log.Warnf("Failed to publish offer countered event for offer %s: %v", offer.ID, errPub)
	}

	s.log.Infof("Offer %s countered with %s at %.2f", offer.ID, counterOffer.ID, counterOffer.Amount)
	return &RespondToOfferResult{Offer: offer, CounterOffer: counterOffer}, nil
}

func (s *offerService) ExpireOffers(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.offerRepo.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire offers: %w", err)
	}
	if expired > 0 {
		s.metrics.OffersExpiredTotal.Add(float64(expired))
		s.log.Infof("Expired %d pending offers", expired)
	}
	return expired, nil
}

func (s *offerService) GetOffer(ctx context.Context, offerID, actorID string) (*entity.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: offer %s", entity.ErrNotFound, offerID)
		}
		return nil, fmt.Errorf("failed to retrieve offer %s: %w", offerID, err)
	}
	if actorID != offer.BuyerID && actorID != offer.SellerID {
		return nil, fmt.Errorf("%w: user %s is not a party to offer %s", entity.ErrForbidden, actorID, offerID)
	}
	return offer, nil
}

func (s *offerService) ListOffersForListing(ctx context.Context, listingID, actorID string) ([]entity.Offer, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: listing %s", entity.ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("failed to retrieve listing %s: %w", listingID, err)
	}
	if actorID != listing.SellerID {
		return nil, fmt.Errorf("%w: user %s is not the seller of listing %s", entity.ErrForbidden, actorID, listingID)
	}

	offers, err := s.offerRepo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for listing %s: %w", listingID, err)
	}
	return offers, nil
}

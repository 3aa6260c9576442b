package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
)

const natsSubjectListingCreated = "listing.created"

type CreateListingInput struct {
	SellerID string
	Title    string
	Category string
	Price    float64
}

type ListingService interface {
	CreateListing(ctx context.Context, input CreateListingInput) (*entity.Listing, error)
	GetListing(ctx context.Context, listingID string) (*entity.Listing, error)
	ListActiveBySeller(ctx context.Context, sellerID string) ([]entity.Listing, error)
}

type listingService struct {
	listingRepo  repository.ListingRepository
	msgPublisher nats.MessagePublisher
	log          logger.Logger
}

func NewListingService(listingRepo repository.ListingRepository, msgPublisher nats.MessagePublisher, log logger.Logger) ListingService {
	return &listingService{
		listingRepo:  listingRepo,
		msgPublisher: msgPublisher,
		log:          log,
	}
}

func (s *listingService) CreateListing(ctx context.Context, input CreateListingInput) (*entity.Listing, error) {
	listing, err := entity.NewListing(input.SellerID, input.Title, input.Category, input.Price)
	if err != nil {
		return nil, err
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		s.log.Errorf("Failed to save listing for seller %s: %v", input.SellerID, err)
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectListingCreated, listing); errPub != nil {
		s.log.Warnf("Failed to publish listing created event for listing %s: %v", listing.ID, errPub)
	}

	s.log.Infof("Listing %s created by seller %s", listing.ID, input.SellerID)
	return listing, nil
}

func (s *listingService) GetListing(ctx context.Context, listingID string) (*entity.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: listing %s", entity.ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("failed to retrieve listing %s: %w", listingID, err)
	}
	return listing, nil
}

func (s *listingService) ListActiveBySeller(ctx context.Context, sellerID string) ([]entity.Listing, error) {
	listings, err := s.listingRepo.ListActiveBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings for seller %s: %w", sellerID, err)
	}
	return listings, nil
}

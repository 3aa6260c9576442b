package repository

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type UpdateOfferStatusParams struct {
	OfferID string
	Status  entity.OfferStatus
	Version int64
}

type OfferRepository interface {
	// Create persists a new pending offer. Returns ErrAlreadyExists when the
	// buyer already holds a pending offer on the same listing.
	Create(ctx context.Context, offer *entity.Offer) error
	GetByID(ctx context.Context, offerID string) (*entity.Offer, error)
	ListByListing(ctx context.Context, listingID string) ([]entity.Offer, error)
	HasPendingForBuyer(ctx context.Context, listingID, buyerID string) (bool, error)

	// UpdateStatus performs a version compare-and-set status write.
	UpdateStatus(ctx context.Context, params UpdateOfferStatusParams) error

	// ExpireDue transitions every pending offer whose expiry is at or before
	// now to expired and reports how many were swept. The write is per-offer
	// compare-and-set, so concurrent sweepers never double-transition a row.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

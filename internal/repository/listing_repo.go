package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *entity.Listing) error
	GetByID(ctx context.Context, listingID string) (*entity.Listing, error)
	ListActiveBySeller(ctx context.Context, sellerID string) ([]entity.Listing, error)

	// MarkSold atomically transitions the listing from active to sold and
	// records the buyer. Returns ErrStateConflict if the listing is no longer
	// active; this is the gate that lets exactly one offer acceptance win.
	MarkSold(ctx context.Context, listingID, buyerID string) error

	// Relist atomically transitions the listing from sold back to active and
	// clears the buyer. Used only when the relist-on-cancel policy is enabled.
	Relist(ctx context.Context, listingID string) error

	// ForceRemove sets the listing status to removed unconditionally, even if
	// it is already sold. Reserved for the moderation gate.
	ForceRemove(ctx context.Context, listingID string) error
}

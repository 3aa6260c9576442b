package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusRemoved ListingStatus = "removed"
)

// Listing is a sellable item posted by a user. Listings are never hard-deleted:
// they move to "sold" on offer acceptance or to "removed" by moderation, so the
// record stays available for disputes and reviews.
type Listing struct {
	ID        string        `bson:"_id,omitempty"`
	SellerID  string        `bson:"seller_id"`
	Title     string        `bson:"title"`
	Category  string        `bson:"category"`
	Price     float64       `bson:"price"`
	Status    ListingStatus `bson:"status"`
	BuyerID   string        `bson:"buyer_id,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
	Version   int64         `bson:"version"`
}

func NewListing(sellerID, title, category string, price float64) (*Listing, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: seller ID cannot be empty", ErrValidation)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}

	now := time.Now().UTC()
	return &Listing{
		ID:        uuid.NewString(),
		SellerID:  sellerID,
		Title:     title,
		Category:  category,
		Price:     price,
		Status:    ListingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

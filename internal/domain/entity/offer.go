package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusCountered OfferStatus = "countered"
	OfferStatusExpired   OfferStatus = "expired"
)

// Offer is a proposed price against a listing. The seller ID is denormalized
// from the listing owner so authorization checks do not need a listing lookup.
// A countered offer is closed and a new pending offer is opened with the
// proposer roles reversed; CounterOf points back at the closed offer.
type Offer struct {
	ID         string      `bson:"_id,omitempty"`
	ListingID  string      `bson:"listing_id"`
	BuyerID    string      `bson:"buyer_id"`
	SellerID   string      `bson:"seller_id"`
	ProposedBy string      `bson:"proposed_by"`
	Amount     float64     `bson:"amount"`
	Note       string      `bson:"note,omitempty"`
	Status     OfferStatus `bson:"status"`
	ExpiresAt  time.Time   `bson:"expires_at"`
	CounterOf  string      `bson:"counter_of,omitempty"`
	CreatedAt  time.Time   `bson:"created_at"`
	UpdatedAt  time.Time   `bson:"updated_at"`
	Version    int64       `bson:"version"`
}

func NewOffer(listingID, buyerID, sellerID string, amount float64, note string, expiresAt time.Time) (*Offer, error) {
	if listingID == "" {
		return nil, fmt.Errorf("%w: listing ID cannot be empty", ErrValidation)
	}
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer ID cannot be empty", ErrValidation)
	}
	if sellerID == "" {
		return nil, fmt.Errorf("%w: seller ID cannot be empty", ErrValidation)
	}
	if buyerID == sellerID {
		return nil, fmt.Errorf("%w: buyer cannot offer on their own listing", ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: offer amount must be positive", ErrValidation)
	}
	if expiresAt.IsZero() {
		return nil, fmt.Errorf("%w: offer expiry must be set", ErrValidation)
	}

	now := time.Now().UTC()
	return &Offer{
		ID:         uuid.NewString(),
		ListingID:  listingID,
		BuyerID:    buyerID,
		SellerID:   sellerID,
		ProposedBy: buyerID,
		Amount:     amount,
		Note:       note,
		Status:     OfferStatusPending,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}, nil
}

// IsOpen reports whether the offer can still be responded to. Accepted,
// rejected, countered and expired offers are all closed.
func (o *Offer) IsOpen() bool {
	return o.Status == OfferStatusPending
}

// RecipientID returns the party expected to respond: the counterparty of
// whoever proposed the current terms.
func (o *Offer) RecipientID() string {
	if o.ProposedBy == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// Counter builds the replacement offer created when the recipient counters
// with a new amount. The original keeps its buyer/seller roles; only the
// proposer flips.
func (o *Offer) Counter(proposedBy string, amount float64, note string, expiresAt time.Time) (*Offer, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: counter amount must be positive", ErrValidation)
	}
	if expiresAt.IsZero() {
		expiresAt = o.ExpiresAt
	}

	now := time.Now().UTC()
	return &Offer{
		ID:         uuid.NewString(),
		ListingID:  o.ListingID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		ProposedBy: proposedBy,
		Amount:     amount,
		Note:       note,
		Status:     OfferStatusPending,
		ExpiresAt:  expiresAt,
		CounterOf:  o.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}, nil
}

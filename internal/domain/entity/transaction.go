package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusInProgress TransactionStatus = "in_progress"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusDisputed   TransactionStatus = "disputed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

type DisputeFavor string

const (
	DisputeFavorBuyer  DisputeFavor = "buyer"
	DisputeFavorSeller DisputeFavor = "seller"
)

// Transaction is the binding agreement created once an offer is accepted. The
// agreed amount is copied from the offer and never changes. Status is stored
// but always recomputed from the payment and delivery flags on every mutation,
// so it cannot drift from its inputs: whichever of payment/delivery arrives
// second triggers completion.
type Transaction struct {
	ID             string            `bson:"_id,omitempty"`
	ListingID      string            `bson:"listing_id"`
	OfferID        string            `bson:"offer_id"`
	BuyerID        string            `bson:"buyer_id"`
	SellerID       string            `bson:"seller_id"`
	Amount         float64           `bson:"amount"`
	Status         TransactionStatus `bson:"status"`
	PaymentStatus  PaymentStatus     `bson:"payment_status"`
	DeliveryStatus DeliveryStatus    `bson:"delivery_status"`
	DeliveryProofs []string          `bson:"delivery_proofs,omitempty"`

	DisputeReason   string       `bson:"dispute_reason,omitempty"`
	DisputeRaisedAt *time.Time   `bson:"dispute_raised_at,omitempty"`
	Resolution      string       `bson:"resolution,omitempty"`
	ResolutionFavor DisputeFavor `bson:"resolution_favor,omitempty"`
	ResolvedAt      *time.Time   `bson:"resolved_at,omitempty"`

	CancelReason string     `bson:"cancel_reason,omitempty"`
	CompletedAt  *time.Time `bson:"completed_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	Version      int64      `bson:"version"`
}

func NewTransaction(listingID, offerID, buyerID, sellerID string, amount float64) (*Transaction, error) {
	if listingID == "" || offerID == "" {
		return nil, fmt.Errorf("%w: listing and offer IDs cannot be empty", ErrValidation)
	}
	if buyerID == "" || sellerID == "" {
		return nil, fmt.Errorf("%w: buyer and seller IDs cannot be empty", ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: transaction amount must be positive", ErrValidation)
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:             uuid.NewString(),
		ListingID:      listingID,
		OfferID:        offerID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		Amount:         amount,
		Status:         TransactionStatusPending,
		PaymentStatus:  PaymentStatusPending,
		DeliveryStatus: DeliveryStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}, nil
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusCancelled
}

func (t *Transaction) IsParty(userID string) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// recomputeStatus derives the authoritative status from the payment and
// delivery flags. Disputed and terminal states are left alone.
func (t *Transaction) recomputeStatus(now time.Time) {
	switch t.Status {
	case TransactionStatusDisputed, TransactionStatusCancelled, TransactionStatusCompleted:
		return
	}
	paid := t.PaymentStatus == PaymentStatusPaid
	delivered := t.DeliveryStatus == DeliveryStatusDelivered
	switch {
	case paid && delivered:
		t.Status = TransactionStatusCompleted
		completedAt := now
		t.CompletedAt = &completedAt
	case paid || delivered:
		t.Status = TransactionStatusInProgress
	default:
		t.Status = TransactionStatusPending
	}
}

// RecordPayment marks the agreed amount as paid. Partial payments are not
// supported: the paid amount must match the agreed amount exactly.
func (t *Transaction) RecordPayment(amountPaid float64) error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: transaction %s is already %s", ErrConflict, t.ID, t.Status)
	}
	if t.Status == TransactionStatusDisputed {
		return fmt.Errorf("%w: transaction %s is disputed", ErrConflict, t.ID)
	}
	if t.PaymentStatus == PaymentStatusPaid {
		return fmt.Errorf("%w: transaction %s is already paid", ErrConflict, t.ID)
	}
	if amountPaid != t.Amount {
		return fmt.Errorf("%w: paid amount %.2f does not match agreed amount %.2f", ErrValidation, amountPaid, t.Amount)
	}

	now := time.Now().UTC()
	t.PaymentStatus = PaymentStatusPaid
	t.recomputeStatus(now)
	t.UpdatedAt = now
	return nil
}

// MarkDelivered records delivery and completes the transaction if payment has
// already landed.
func (t *Transaction) MarkDelivered() error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: transaction %s is already %s", ErrConflict, t.ID, t.Status)
	}
	if t.Status == TransactionStatusDisputed {
		return fmt.Errorf("%w: transaction %s is disputed", ErrConflict, t.ID)
	}
	if t.DeliveryStatus == DeliveryStatusDelivered {
		return fmt.Errorf("%w: transaction %s is already delivered", ErrConflict, t.ID)
	}

	now := time.Now().UTC()
	t.DeliveryStatus = DeliveryStatusDelivered
	t.recomputeStatus(now)
	t.UpdatedAt = now
	return nil
}

// AddDeliveryProof appends a proof reference. The proof list is mutable only
// while the transaction is still pending or in progress; it freezes afterwards
// as dispute evidence.
func (t *Transaction) AddDeliveryProof(proofRef string) error {
	if proofRef == "" {
		return fmt.Errorf("%w: proof reference cannot be empty", ErrValidation)
	}
	if err := t.checkProofsMutable(); err != nil {
		return err
	}
	for _, ref := range t.DeliveryProofs {
		if ref == proofRef {
			return fmt.Errorf("%w: proof %s already attached", ErrConflict, proofRef)
		}
	}
	t.DeliveryProofs = append(t.DeliveryProofs, proofRef)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Transaction) RemoveDeliveryProof(proofRef string) error {
	if err := t.checkProofsMutable(); err != nil {
		return err
	}
	for i, ref := range t.DeliveryProofs {
		if ref == proofRef {
			t.DeliveryProofs = append(t.DeliveryProofs[:i], t.DeliveryProofs[i+1:]...)
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: proof %s is not attached", ErrNotFound, proofRef)
}

func (t *Transaction) checkProofsMutable() error {
	switch t.Status {
	case TransactionStatusPending, TransactionStatusInProgress:
		return nil
	default:
		return fmt.Errorf("%w: delivery proofs are frozen once transaction is %s", ErrConflict, t.Status)
	}
}

// Cancel is allowed only before any payment or delivery has been recorded.
func (t *Transaction) Cancel(reason string) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("%w: transaction %s cannot be cancelled from %s", ErrConflict, t.ID, t.Status)
	}
	t.Status = TransactionStatusCancelled
	t.CancelReason = reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// RaiseDispute freezes the transaction for administrative resolution. The
// payment and delivery flags are left untouched as evidence.
func (t *Transaction) RaiseDispute(reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: dispute reason cannot be empty", ErrValidation)
	}
	switch t.Status {
	case TransactionStatusPending, TransactionStatusInProgress:
	default:
		return fmt.Errorf("%w: transaction %s cannot be disputed from %s", ErrConflict, t.ID, t.Status)
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusDisputed
	t.DisputeReason = reason
	t.DisputeRaisedAt = &now
	t.UpdatedAt = now
	return nil
}

// ResolveDispute closes a disputed transaction with an administrative
// decision. Payment and delivery flags stay as they were; any refund or payout
// is an external collaborator's responsibility.
func (t *Transaction) ResolveDispute(resolutionNote string, favor DisputeFavor) error {
	if t.Status != TransactionStatusDisputed {
		return fmt.Errorf("%w: transaction %s is not disputed", ErrConflict, t.ID)
	}
	if favor != DisputeFavorBuyer && favor != DisputeFavorSeller {
		return fmt.Errorf("%w: resolution favor must be buyer or seller", ErrValidation)
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusCompleted
	t.Resolution = resolutionNote
	t.ResolutionFavor = favor
	t.ResolvedAt = &now
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

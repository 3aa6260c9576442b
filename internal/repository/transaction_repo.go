package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction *entity.Transaction) error
	GetByID(ctx context.Context, transactionID string) (*entity.Transaction, error)
	GetOpenByListing(ctx context.Context, listingID string) (*entity.Transaction, error)

	// Update writes the transaction's mutable fields guarded by a version
	// compare-and-set on expectedVersion. Returns ErrOptimisticLock when a
	// concurrent writer got there first; callers re-read and re-apply.
	Update(ctx context.Context, transaction *entity.Transaction, expectedVersion int64) error
}

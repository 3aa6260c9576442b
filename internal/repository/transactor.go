package repository

import "context"

// Transactor runs a function inside a storage-level transaction. It exists
// for the one multi-entity atomic step in the engine: accepting an offer,
// selling the listing and creating the transaction must land together or not
// at all.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

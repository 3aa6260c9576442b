package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type ReactionRepository interface {
	// Get returns the user's reaction on the review, or ErrNotFound.
	Get(ctx context.Context, reviewID, userID string) (*entity.Reaction, error)
	Upsert(ctx context.Context, reaction *entity.Reaction) error
	Delete(ctx context.Context, reviewID, userID string) error
}

type ReviewReportRepository interface {
	// Create persists a report. Returns ErrAlreadyExists when this reporter
	// already reported this review.
	Create(ctx context.Context, report *entity.ReviewReport) error
	ListByReview(ctx context.Context, reviewID string) ([]entity.ReviewReport, error)
}

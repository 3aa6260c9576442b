package entity

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type ReviewTargetType string

const (
	ReviewTargetItem ReviewTargetType = "item"
	ReviewTargetUser ReviewTargetType = "user"
)

type ReactionType string

const (
	ReactionHelpful   ReactionType = "helpful"
	ReactionUnhelpful ReactionType = "unhelpful"
)

// Review is immutable content after creation: only the reaction counters and
// the moderation removal flag mutate. At most one review may exist per
// (reviewer, target) pair.
type Review struct {
	ID               string           `bson:"_id,omitempty"`
	TargetType       ReviewTargetType `bson:"target_type"`
	TargetID         string           `bson:"target_id"`
	ReviewerID       string           `bson:"reviewer_id"`
	Rating           int32            `bson:"rating"`
	Title            string           `bson:"title,omitempty"`
	Body             string           `bson:"body"`
	VerifiedPurchase bool             `bson:"verified_purchase"`
	HelpfulCount     int64            `bson:"helpful_count"`
	UnhelpfulCount   int64            `bson:"unhelpful_count"`
	Images           []string         `bson:"images,omitempty"`
	Removed          bool             `bson:"removed"`
	CreatedAt        time.Time        `bson:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at"`
	Version          int64            `bson:"version"`
}

func NewReview(targetType ReviewTargetType, targetID, reviewerID string, rating int32, title, body string, verifiedPurchase bool, images []string) (*Review, error) {
	if targetType != ReviewTargetItem && targetType != ReviewTargetUser {
		return nil, fmt.Errorf("%w: unknown review target type %q", ErrValidation, targetType)
	}
	if targetID == "" {
		return nil, fmt.Errorf("%w: target ID cannot be empty", ErrValidation)
	}
	if reviewerID == "" {
		return nil, fmt.Errorf("%w: reviewer ID cannot be empty", ErrValidation)
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: review body cannot be empty", ErrValidation)
	}

	now := time.Now().UTC()
	return &Review{
		ID:               uuid.NewString(),
		TargetType:       targetType,
		TargetID:         targetID,
		ReviewerID:       reviewerID,
		Rating:           rating,
		Title:            title,
		Body:             body,
		VerifiedPurchase: verifiedPurchase,
		Images:           images,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}, nil
}

// Reaction is a per-(review, user) helpful/unhelpful vote. A user holds at
// most one reaction per review and may switch or withdraw it.
type Reaction struct {
	ID        string       `bson:"_id,omitempty"`
	ReviewID  string       `bson:"review_id"`
	UserID    string       `bson:"user_id"`
	Type      ReactionType `bson:"type"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

func NewReaction(reviewID, userID string, reactionType ReactionType) (*Reaction, error) {
	if reviewID == "" || userID == "" {
		return nil, fmt.Errorf("%w: review and user IDs cannot be empty", ErrValidation)
	}
	if reactionType != ReactionHelpful && reactionType != ReactionUnhelpful {
		return nil, fmt.Errorf("%w: unknown reaction type %q", ErrValidation, reactionType)
	}
	now := time.Now().UTC()
	return &Reaction{
		ID:        uuid.NewString(),
		ReviewID:  reviewID,
		UserID:    userID,
		Type:      reactionType,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ReviewReport records that a user flagged a review for moderation. One report
// per (review, reporter) pair.
type ReviewReport struct {
	ID         string    `bson:"_id,omitempty"`
	ReviewID   string    `bson:"review_id"`
	ReporterID string    `bson:"reporter_id"`
	Reason     string    `bson:"reason"`
	CreatedAt  time.Time `bson:"created_at"`
}

func NewReviewReport(reviewID, reporterID, reason string) (*ReviewReport, error) {
	if reviewID == "" || reporterID == "" {
		return nil, fmt.Errorf("%w: review and reporter IDs cannot be empty", ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: report reason cannot be empty", ErrValidation)
	}
	return &ReviewReport{
		ID:         uuid.NewString(),
		ReviewID:   reviewID,
		ReporterID: reporterID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ReviewAggregate is the stored per-target rating summary. It is always
// recomputed by a full re-aggregation over non-removed reviews, never by an
// incremental running average, so it stays correct under concurrent
// moderation removals.
type ReviewAggregate struct {
	TargetType ReviewTargetType `bson:"target_type"`
	TargetID   string           `bson:"target_id"`
	Count      int64            `bson:"count"`
	Mean       float64          `bson:"mean"`
	UpdatedAt  time.Time        `bson:"updated_at"`
}

// RoundMean rounds a mean rating to two-decimal precision.
func RoundMean(mean float64) float64 {
	return math.Round(mean*100) / 100
}

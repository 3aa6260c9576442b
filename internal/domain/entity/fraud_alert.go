package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AlertTargetType string

const (
	AlertTargetItem   AlertTargetType = "item"
	AlertTargetUser   AlertTargetType = "user"
	AlertTargetReview AlertTargetType = "review"
)

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertStatusNew       AlertStatus = "new"
	AlertStatusReviewing AlertStatus = "reviewing"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

// FraudAlert is a moderation signal against a listing, user or review,
// supplied by the external scoring service or by user reports. Resolving an
// item-targeted alert forces the listing to "removed" regardless of its
// current state.
type FraudAlert struct {
	ID            string          `bson:"_id,omitempty"`
	TargetType    AlertTargetType `bson:"target_type"`
	TargetID      string          `bson:"target_id"`
	Severity      AlertSeverity   `bson:"severity"`
	Status        AlertStatus     `bson:"status"`
	Details       string          `bson:"details,omitempty"`
	ReviewerID    string          `bson:"reviewer_id,omitempty"`
	ReviewerNotes string          `bson:"reviewer_notes,omitempty"`
	ResolvedAt    *time.Time      `bson:"resolved_at,omitempty"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
	Version       int64           `bson:"version"`
}

func NewFraudAlert(targetType AlertTargetType, targetID string, severity AlertSeverity, details string) (*FraudAlert, error) {
	switch targetType {
	case AlertTargetItem, AlertTargetUser, AlertTargetReview:
	default:
		return nil, fmt.Errorf("%w: unknown alert target type %q", ErrValidation, targetType)
	}
	if targetID == "" {
		return nil, fmt.Errorf("%w: alert target ID cannot be empty", ErrValidation)
	}
	switch severity {
	case AlertSeverityLow, AlertSeverityMedium, AlertSeverityHigh, AlertSeverityCritical:
	default:
		return nil, fmt.Errorf("%w: unknown alert severity %q", ErrValidation, severity)
	}

	now := time.Now().UTC()
	return &FraudAlert{
		ID:         uuid.NewString(),
		TargetType: targetType,
		TargetID:   targetID,
		Severity:   severity,
		Status:     AlertStatusNew,
		Details:    details,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}, nil
}

func (a *FraudAlert) IsClosed() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusDismissed
}

// Claim moves a fresh alert into reviewing under a moderator's name.
func (a *FraudAlert) Claim(reviewerID string) error {
	if reviewerID == "" {
		return fmt.Errorf("%w: reviewer ID cannot be empty", ErrValidation)
	}
	if a.Status != AlertStatusNew {
		return fmt.Errorf("%w: alert %s cannot be claimed from %s", ErrConflict, a.ID, a.Status)
	}
	a.Status = AlertStatusReviewing
	a.ReviewerID = reviewerID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Close stamps the alert with the moderator's verdict.
func (a *FraudAlert) Close(status AlertStatus, reviewerID, notes string) error {
	if status != AlertStatusResolved && status != AlertStatusDismissed {
		return fmt.Errorf("%w: alert close status must be resolved or dismissed", ErrValidation)
	}
	if reviewerID == "" {
		return fmt.Errorf("%w: reviewer ID cannot be empty", ErrValidation)
	}
	if a.IsClosed() {
		return fmt.Errorf("%w: alert %s is already %s", ErrConflict, a.ID, a.Status)
	}
	now := time.Now().UTC()
	a.Status = status
	a.ReviewerID = reviewerID
	a.ReviewerNotes = notes
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

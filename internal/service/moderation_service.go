package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
)

const (
	natsSubjectListingRemoved = "listing.removed"
	natsSubjectAlertProcessed = "fraudalert.processed"
)

// Alert actions accepted by ProcessAlert.
const (
	AlertActionResolve = "resolve"
	AlertActionDismiss = "dismiss"
)

type ModerationService interface {
	CreateAlert(ctx context.Context, targetType entity.AlertTargetType, targetID string, severity entity.AlertSeverity, details string) (*entity.FraudAlert, error)
	ListOpenAlerts(ctx context.Context) ([]entity.FraudAlert, error)
	// ClaimAlert moves a fresh alert into reviewing and records the reviewer.
	ClaimAlert(ctx context.Context, alertID, reviewerID string) (*entity.FraudAlert, error)
	// ProcessAlert closes an alert. Resolving an alert against an item or a
	// review also enforces the outcome: the item is force-removed, the
	// review is soft-removed.
	ProcessAlert(ctx context.Context, alertID, action, reviewerID, note string) (*entity.FraudAlert, error)
}

type moderationService struct {
	alertRepo     repository.FraudAlertRepository
	listingRepo   repository.ListingRepository
	reviewService ReviewService
	msgPublisher  nats.MessagePublisher
	metrics       *metrics.Manager
	log           logger.Logger
}

func NewModerationService(
	alertRepo repository.FraudAlertRepository,
	listingRepo repository.ListingRepository,
	reviewService ReviewService,
	msgPublisher nats.MessagePublisher,
	m *metrics.Manager,
	log logger.Logger,
) ModerationService {
	return &moderationService{
		alertRepo:     alertRepo,
		listingRepo:   listingRepo,
		reviewService: reviewService,
		msgPublisher:  msgPublisher,
		metrics:       m,
		log:           log,
	}
}

func (s *moderationService) CreateAlert(ctx context.Context, targetType entity.AlertTargetType, targetID string, severity entity.AlertSeverity, details string) (*entity.FraudAlert, error) {
	alert, err := entity.NewFraudAlert(targetType, targetID, severity, details)
	if err != nil {
		return nil, err
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.log.Errorf("Failed to create fraud alert for target %s/%s: %v", targetType, targetID, err)
		return nil, fmt.Errorf("failed to create fraud alert: %w", err)
	}

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectFraudAlertCreated, alert); errPub != nil {
		s.log.Warnf("Failed to publish fraud alert created event for alert %s: %v", alert.ID, errPub)
	}
	s.log.Infof("Fraud alert %s created on target %s/%s (severity %s)", alert.ID, targetType, targetID, severity)
	return alert, nil
}

func (s *moderationService) ListOpenAlerts(ctx context.Context) ([]entity.FraudAlert, error) {
	alerts, err := s.alertRepo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}
	return alerts, nil
}

func (s *moderationService) ClaimAlert(ctx context.Context, alertID, reviewerID string) (*entity.FraudAlert, error) {
	alert, err := s.getAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	expected := alert.Version
	if err := alert.Claim(reviewerID); err != nil {
		return nil, err
	}
	if err := s.alertRepo.Update(ctx, alert, expected); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, fmt.Errorf("%w: alert %s was claimed concurrently", entity.ErrConflict, alertID)
		}
		return nil, fmt.Errorf("failed to claim alert %s: %w", alertID, err)
	}

	s.log.Infof("Alert %s claimed by reviewer %s", alertID, reviewerID)
	return alert, nil
}

func (s *moderationService) ProcessAlert(ctx context.Context, alertID, action, reviewerID, note string) (*entity.FraudAlert, error) {
	var closeStatus entity.AlertStatus
	switch action {
	case AlertActionResolve:
		closeStatus = entity.AlertStatusResolved
	case AlertActionDismiss:
		closeStatus = entity.AlertStatusDismissed
	default:
		return nil, fmt.Errorf("%w: unknown alert action %q", entity.ErrValidation, action)
	}

	alert, err := s.getAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	expected := alert.Version
	if err := alert.Close(closeStatus, reviewerID, note); err != nil {
		return nil, err
	}
	if err := s.alertRepo.Update(ctx, alert, expected); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, fmt.Errorf("%w: alert %s was processed concurrently", entity.ErrConflict, alertID)
		}
		return nil, fmt.Errorf("failed to update alert %s: %w", alertID, err)
	}

	if closeStatus == entity.AlertStatusResolved {
		if err := s.enforceOutcome(ctx, alert); err != nil {
			// The alert itself is closed; enforcement failures need an
			// operator to retry manually.
			s.log.Errorf("Failed to enforce outcome for resolved alert %s: %v", alertID, err)
		}
	}

	s.metrics.AlertsProcessedTotal.WithLabelValues(action).Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectAlertProcessed, alert); errPub != nil {
		s.log.Warnf("Failed to publish alert processed event for alert %s: %v", alertID, errPub)
	}

	s.log.Infof("Alert %s processed by reviewer %s (action %s)", alertID, reviewerID, action)
	return alert, nil
}

func (s *moderationService) enforceOutcome(ctx context.Context, alert *entity.FraudAlert) error {
	switch alert.TargetType {
	case entity.AlertTargetItem:
		if err := s.listingRepo.ForceRemove(ctx, alert.TargetID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.log.Warnf("Listing %s from alert %s no longer exists", alert.TargetID, alert.ID)
				return nil
			}
			return fmt.Errorf("failed to remove listing %s: %w", alert.TargetID, err)
		}
		if errPub := s.msgPublisher.Publish(ctx, natsSubjectListingRemoved, map[string]interface{}{
			"listing_id": alert.TargetID,
			"alert_id":   alert.ID,
		}); errPub != nil {
			s.log.Warnf("Failed to publish listing removed event for listing %s: %v", alert.TargetID, errPub)
		}
	case entity.AlertTargetReview:
		if err := s.reviewService.RemoveReview(ctx, alert.TargetID); err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				s.log.Warnf("Review %s from alert %s no longer exists", alert.TargetID, alert.ID)
				return nil
			}
			return fmt.Errorf("failed to remove review %s: %w", alert.TargetID, err)
		}
	case entity.AlertTargetUser:
		// User accounts live outside this service; downstream consumers act
		// on the processed event.
	}
	return nil
}

func (s *moderationService) getAlert(ctx context.Context, alertID string) (*entity.FraudAlert, error) {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: alert %s", entity.ErrNotFound, alertID)
		}
		return nil, fmt.Errorf("failed to retrieve alert %s: %w", alertID, err)
	}
	return alert, nil
}

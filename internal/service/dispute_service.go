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
	natsSubjectDisputeRaised   = "dispute.raised"
	natsSubjectDisputeResolved = "dispute.resolved"
)

type DisputeService interface {
	RaiseDispute(ctx context.Context, transactionID, actorID, reason string) (*entity.Transaction, error)
	// ResolveDispute is an administrative operation; resolverID identifies the
	// moderator, not a transaction party.
	ResolveDispute(ctx context.Context, transactionID, resolverID, resolutionNote string, favor entity.DisputeFavor) (*entity.Transaction, error)
}

type disputeService struct {
	transactionRepo repository.TransactionRepository
	messageRepo     repository.MessageRepository
	msgPublisher    nats.MessagePublisher
	metrics         *metrics.Manager
	log             logger.Logger
}

func NewDisputeService(
	transactionRepo repository.TransactionRepository,
	messageRepo repository.MessageRepository,
	msgPublisher nats.MessagePublisher,
	m *metrics.Manager,
	log logger.Logger,
) DisputeService {
	return &disputeService{
		transactionRepo: transactionRepo,
		messageRepo:     messageRepo,
		msgPublisher:    msgPublisher,
		metrics:         m,
		log:             log,
	}
}

func (s *disputeService) RaiseDispute(ctx context.Context, transactionID, actorID, reason string) (*entity.Transaction, error) {
	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if !t.IsParty(actorID) {
			return fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, actorID, t.ID)
		}
		return t.RaiseDispute(reason)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DisputesRaisedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectDisputeRaised, transaction); errPub != nil {
		s.log.Warnf("Failed to publish dispute raised event for transaction %s: %v", transactionID, errPub)
	}
	s.postSystemMessage(ctx, transactionID, fmt.Sprintf("Dispute raised: %s", reason))

	s.log.Infof("Dispute raised on transaction %s by user %s", transactionID, actorID)
	return transaction, nil
}

func (s *disputeService) ResolveDispute(ctx context.Context, transactionID, resolverID, resolutionNote string, favor entity.DisputeFavor) (*entity.Transaction, error) {
	if resolverID == "" {
		return nil, fmt.Errorf("%w: resolver ID cannot be empty", entity.ErrValidation)
	}

	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		return t.ResolveDispute(resolutionNote, favor)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DisputesResolvedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectDisputeResolved, map[string]interface{}{
		"transaction_id": transaction.ID,
		"resolver_id":    resolverID,
		"favor":          favor,
		"resolution":     resolutionNote,
	}); errPub != nil {
		s.log.Warnf("Failed to publish dispute resolved event for transaction %s: %v", transactionID, errPub)
	}
	s.postSystemMessage(ctx, transactionID, fmt.Sprintf("Dispute resolved in favor of %s: %s", favor, resolutionNote))

	s.log.Infof("Dispute on transaction %s resolved in favor of %s by %s", transactionID, favor, resolverID)
	return transaction, nil
}

func (s *disputeService) mutate(ctx context.Context, transactionID string, apply func(*entity.Transaction) error) (*entity.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: transaction %s", entity.ErrNotFound, transactionID)
			}
			return nil, fmt.Errorf("failed to retrieve transaction %s: %w", transactionID, err)
		}

		expectedVersion := transaction.Version
		if err := apply(transaction); err != nil {
			return nil, err
		}

		err = s.transactionRepo.Update(ctx, transaction, expectedVersion)
		if err == nil {
			transaction.Version = expectedVersion + 1
			return transaction, nil
		}
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return nil, fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("transaction %s kept changing concurrently: %w", transactionID, lastErr)
}

func (s *disputeService) postSystemMessage(ctx context.Context, transactionID, body string) {
	message, err := entity.NewTransactionMessage(transactionID, entity.SystemSenderID, entity.SenderRoleSystem, body)
	if err != nil {
		s.log.Warnf("Failed to build system message for transaction %s: %v", transactionID, err)
		return
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.log.Warnf("Failed to post system message on transaction %s: %v", transactionID, err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/repository"
)

const (
	natsSubjectTransactionCompleted = "transaction.completed"
	natsSubjectTransactionCancelled = "transaction.cancelled"
	natsSubjectPaymentRecorded      = "transaction.payment.recorded"
	natsSubjectDeliveryConfirmed    = "transaction.delivery.confirmed"
)

// casRetries bounds the re-read/re-apply loop used when a concurrent writer
// wins the version compare-and-set. Payment and delivery legitimately race to
// trigger completion; a couple of retries is enough for both flags to land.
const casRetries = 3

type TransactionService interface {
	GetTransaction(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error)
	RecordPayment(ctx context.Context, transactionID, actorID string, amountPaid float64) (*entity.Transaction, error)
	UploadDeliveryProof(ctx context.Context, transactionID, actorID, proofRef string) (*entity.Transaction, error)
	RemoveDeliveryProof(ctx context.Context, transactionID, actorID, proofRef string) (*entity.Transaction, error)
	MarkDelivered(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error)
	ConfirmDelivery(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error)
	Cancel(ctx context.Context, transactionID, actorID, reason string) (*entity.Transaction, error)

	PostMessage(ctx context.Context, transactionID, senderID, body string) (*entity.TransactionMessage, error)
	MarkMessageRead(ctx context.Context, messageID, readerID string) error
	ListMessages(ctx context.Context, transactionID, actorID string) ([]entity.TransactionMessage, error)
}

type transactionService struct {
	transactionRepo repository.TransactionRepository
	listingRepo     repository.ListingRepository
	messageRepo     repository.MessageRepository
	msgPublisher    nats.MessagePublisher
	metrics         *metrics.Manager
	log             logger.Logger
	relistOnCancel  bool
}

func NewTransactionService(
	transactionRepo repository.TransactionRepository,
	listingRepo repository.ListingRepository,
	messageRepo repository.MessageRepository,
	msgPublisher nats.MessagePublisher,
	m *metrics.Manager,
	log logger.Logger,
	relistOnCancel bool,
) TransactionService {
	return &transactionService{
		transactionRepo: transactionRepo,
		listingRepo:     listingRepo,
		messageRepo:     messageRepo,
		msgPublisher:    msgPublisher,
		metrics:         m,
		log:             log,
		relistOnCancel:  relistOnCancel,
	}
}

func (s *transactionService) GetTransaction(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error) {
	transaction, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !transaction.IsParty(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, actorID, transactionID)
	}
	return transaction, nil
}

func (s *transactionService) getTransaction(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", entity.ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("failed to retrieve transaction %s: %w", transactionID, err)
	}
	return transaction, nil
}

// mutate runs the read-mutate-write cycle under the version compare-and-set,
// re-reading and re-applying when a concurrent writer got there first. The
// entity mutation decides validity against the freshest state on every
// attempt, so exactly one writer performs any terminal transition.
func (s *transactionService) mutate(ctx context.Context, transactionID string, apply func(*entity.Transaction) error) (*entity.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		transaction, err := s.getTransaction(ctx, transactionID)
		if err != nil {
			return nil, err
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

func (s *transactionService) RecordPayment(ctx context.Context, transactionID, actorID string, amountPaid float64) (*entity.Transaction, error) {
	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if actorID != t.BuyerID {
			return fmt.Errorf("%w: only the buyer may record payment on transaction %s", entity.ErrForbidden, t.ID)
		}
		return t.RecordPayment(amountPaid)
	})
	if err != nil {
		return nil, err
	}

	if errPub := s.msgPublisher.Publish(ctx, natsSubjectPaymentRecorded, transaction); errPub != nil {
		s.log.Warnf("Failed to publish payment recorded event for transaction %s: %v", transactionID, errPub)
	}
	s.afterCompletionCheck(ctx, transaction)

	s.log.Infof("Payment of %.2f recorded on transaction %s", amountPaid, transactionID)
	return transaction, nil
}

func (s *transactionService) UploadDeliveryProof(ctx context.Context, transactionID, actorID, proofRef string) (*entity.Transaction, error) {
	return s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if actorID != t.SellerID {
			return fmt.Errorf("%w: only the seller may upload delivery proof on transaction %s", entity.ErrForbidden, t.ID)
		}
		return t.AddDeliveryProof(proofRef)
	})
}

func (s *transactionService) RemoveDeliveryProof(ctx context.Context, transactionID, actorID, proofRef string) (*entity.Transaction, error) {
	return s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if actorID != t.SellerID {
			return fmt.Errorf("%w: only the seller may remove delivery proof on transaction %s", entity.ErrForbidden, t.ID)
		}
		return t.RemoveDeliveryProof(proofRef)
	})
}

func (s *transactionService) MarkDelivered(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error) {
	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if actorID != t.SellerID {
			return fmt.Errorf("%w: only the seller may mark transaction %s delivered", entity.ErrForbidden, t.ID)
		}
		return t.MarkDelivered()
	})
	if err != nil {
		return nil, err
	}
	s.afterDelivery(ctx, transaction)
	return transaction, nil
}

// ConfirmDelivery is the buyer's explicit acknowledgement. The workflow is
// identical to MarkDelivered; only the authorized actor differs.
func (s *transactionService) ConfirmDelivery(ctx context.Context, transactionID, actorID string) (*entity.Transaction, error) {
	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if actorID != t.BuyerID {
			return fmt.Errorf("%w: only the buyer may confirm delivery on transaction %s", entity.ErrForbidden, t.ID)
		}
		return t.MarkDelivered()
	})
	if err != nil {
		return nil, err
	}
	s.afterDelivery(ctx, transaction)
	return transaction, nil
}

func (s *transactionService) afterDelivery(ctx context.Context, transaction *entity.Transaction) {
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectDeliveryConfirmed, transaction); errPub != nil {
		s.log.Warnf("Failed to publish delivery confirmed event for transaction %s: %v", transaction.ID, errPub)
	}
	s.afterCompletionCheck(ctx, transaction)
	s.log.Infof("Transaction %s marked delivered", transaction.ID)
}

func (s *transactionService) afterCompletionCheck(ctx context.Context, transaction *entity.Transaction) {
	if transaction.Status != entity.TransactionStatusCompleted {
		return
	}
	s.metrics.TransactionsCompletedTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectTransactionCompleted, transaction); errPub != nil {
		s.log.Warnf("Failed to publish transaction completed event for transaction %s: %v", transaction.ID, errPub)
	}
	s.log.Infof("Transaction %s completed", transaction.ID)
}

func (s *transactionService) Cancel(ctx context.Context, transactionID, actorID, reason string) (*entity.Transaction, error) {
	transaction, err := s.mutate(ctx, transactionID, func(t *entity.Transaction) error {
		if !t.IsParty(actorID) {
			return fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, actorID, t.ID)
		}
		return t.Cancel(reason)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransactionsCancelledTotal.Inc()
	if errPub := s.msgPublisher.Publish(ctx, natsSubjectTransactionCancelled, transaction); errPub != nil {
		s.log.Warnf("Failed to publish transaction cancelled event for transaction %s: %v", transactionID, errPub)
	}
	s.postSystemMessage(ctx, transaction.ID, fmt.Sprintf("Transaction cancelled: %s", reason))

	if s.relistOnCancel {
		if errRelist := s.listingRepo.Relist(ctx, transaction.ListingID); errRelist != nil {
			// The listing may have been removed by moderation in the meantime.
			s.log.Warnf("Failed to relist listing %s after cancelling transaction %s: %v", transaction.ListingID, transactionID, errRelist)
		} else {
			s.log.Infof("Listing %s relisted after transaction %s cancellation", transaction.ListingID, transactionID)
		}
	}

	s.log.Infof("Transaction %s cancelled by user %s", transactionID, actorID)
	return transaction, nil
}

func (s *transactionService) PostMessage(ctx context.Context, transactionID, senderID, body string) (*entity.TransactionMessage, error) {
	transaction, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	var role entity.SenderRole
	switch senderID {
	case transaction.BuyerID:
		role = entity.SenderRoleBuyer
	case transaction.SellerID:
		role = entity.SenderRoleSeller
	default:
		return nil, fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, senderID, transactionID)
	}

	message, err := entity.NewTransactionMessage(transactionID, senderID, role, body)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message on transaction %s: %w", transactionID, err)
	}
	return message, nil
}

func (s *transactionService) MarkMessageRead(ctx context.Context, messageID, readerID string) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: message %s", entity.ErrNotFound, messageID)
		}
		return fmt.Errorf("failed to retrieve message %s: %w", messageID, err)
	}

	transaction, err := s.getTransaction(ctx, message.TransactionID)
	if err != nil {
		return err
	}
	if !transaction.IsParty(readerID) {
		return fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, readerID, transaction.ID)
	}
	if readerID == message.SenderID {
		return fmt.Errorf("%w: sender cannot mark their own message read", entity.ErrValidation)
	}

	if err := s.messageRepo.MarkRead(ctx, messageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	return nil
}

func (s *transactionService) ListMessages(ctx context.Context, transactionID, actorID string) ([]entity.TransactionMessage, error) {
	transaction, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !transaction.IsParty(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a party to transaction %s", entity.ErrForbidden, actorID, transactionID)
	}

	messages, err := s.messageRepo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for transaction %s: %w", transactionID, err)
	}
	return messages, nil
}

// postSystemMessage appends an engine-authored note to the thread. Best
// effort: a failed system message never fails the transition it narrates.
func (s *transactionService) postSystemMessage(ctx context.Context, transactionID, body string) {
	message, err := entity.NewTransactionMessage(transactionID, entity.SystemSenderID, entity.SenderRoleSystem, body)
	if err != nil {
		s.log.Warnf("Failed to build system message for transaction %s: %v", transactionID, err)
		return
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.log.Warnf("Failed to post system message on transaction %s: %v", transactionID, err)
	}
}

package repository

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.TransactionMessage) error
	GetByID(ctx context.Context, messageID string) (*entity.TransactionMessage, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]entity.TransactionMessage, error)

	// MarkRead stamps the read timestamp once; re-stamping an already-read
	// message is a no-op.
	MarkRead(ctx context.Context, messageID string, readAt time.Time) error
}

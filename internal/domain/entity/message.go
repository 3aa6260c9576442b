package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SenderRole string

const (
	SenderRoleBuyer  SenderRole = "buyer"
	SenderRoleSeller SenderRole = "seller"
	SenderRoleSystem SenderRole = "system"
)

// SystemSenderID marks messages authored by the engine itself, for example
// status-change announcements on the transaction thread.
const SystemSenderID = "system"

// TransactionMessage is one entry in a transaction's append-only message
// thread. Messages are never edited; only the read timestamp is stamped later.
type TransactionMessage struct {
	ID            string     `bson:"_id,omitempty"`
	TransactionID string     `bson:"transaction_id"`
	SenderID      string     `bson:"sender_id"`
	SenderRole    SenderRole `bson:"sender_role"`
	Body          string     `bson:"body"`
	ReadAt        *time.Time `bson:"read_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
}

func NewTransactionMessage(transactionID, senderID string, role SenderRole, body string) (*TransactionMessage, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction ID cannot be empty", ErrValidation)
	}
	if senderID == "" {
		return nil, fmt.Errorf("%w: sender ID cannot be empty", ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: message body cannot be empty", ErrValidation)
	}
	switch role {
	case SenderRoleBuyer, SenderRoleSeller, SenderRoleSystem:
	default:
		return nil, fmt.Errorf("%w: unknown sender role %q", ErrValidation, role)
	}

	return &TransactionMessage{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		SenderID:      senderID,
		SenderRole:    role,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

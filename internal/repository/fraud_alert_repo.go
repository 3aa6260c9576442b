package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/exchange-service/internal/domain/entity"
)

type FraudAlertRepository interface {
	Create(ctx context.Context, alert *entity.FraudAlert) error
	GetByID(ctx context.Context, alertID string) (*entity.FraudAlert, error)
	ListOpen(ctx context.Context) ([]entity.FraudAlert, error)

	// Update writes the alert's mutable fields guarded by a version
	// compare-and-set on expectedVersion.
	Update(ctx context.Context, alert *entity.FraudAlert, expectedVersion int64) error
}

package repository

import (
	"context"
	"time"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

// Repository is the campaign store. Every mutation of a campaign and its
// contributions goes through Transaction.
type Repository interface {
	// Create allocates the next id, inserts c and records CampaignCreated.
	Create(ctx context.Context, c *model.Campaign, at time.Time) error
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, offset, limit int) ([]*model.Campaign, error)
	Contribution(ctx context.Context, id int64, contributor string) (int64, error)
	Contributions(ctx context.Context, id int64) ([]*model.Contribution, error)
	// OpenSettlements lists campaigns whose settlement started at or before
	// startedBefore (unix seconds) and is still open, oldest id first.
	OpenSettlements(ctx context.Context, startedBefore int64, limit int) ([]*model.Campaign, error)

	// Transaction runs fn with exclusive access to one campaign. Staged
	// writes and events commit only when fn returns nil. fn must not call
	// out of the process: transactions never nest and the campaign stays
	// locked until fn returns.
	Transaction(ctx context.Context, id int64, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of one campaign inside Transaction. Reads observe the
// writes staged earlier in the same transaction.
type Tx interface {
	// Campaign returns the working copy. Changes are persisted by SaveCampaign.
	Campaign() *model.Campaign
	Contribution(contributor string) (int64, error)
	SetContribution(contributor string, amount int64) error
	SaveCampaign() error
	Emit(e model.Event) error
}

// OutboxStore is what the relay jobs need from an outbox.
type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
	// Requeue puts a failed message back to PENDING with a fresh retry budget.
	Requeue(ctx context.Context, id int64) error
}

type gormDBKey struct{}

// WithDB carries a gorm transaction in ctx for the repositories below it.
func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, gormDBKey{}, db)
}

// DB returns the gorm transaction carried by ctx, or fallback when there is
// none. The account and journal repositories use it so a wallet credit
// commits as one unit.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if db, ok := ctx.Value(gormDBKey{}).(*gorm.DB); ok {
		return db
	}
	return fallback
}

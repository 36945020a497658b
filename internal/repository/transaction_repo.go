package repository

import (
	"context"

	"crowdfund/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("account transaction not found")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, trans *model.AccountTransaction) error {
	return DB(ctx, r.db).WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransferNo(ctx context.Context, transferNo string) (*model.AccountTransaction, error) {
	var trans model.AccountTransaction
	err := DB(ctx, r.db).WithContext(ctx).Where("transfer_no = ?", transferNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListByIdentity pages the journal newest first.
func (r *TransactionRepository) ListByIdentity(ctx context.Context, identity string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Where("identity = ?", identity).
		Session(&gorm.Session{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

package repository

import (
	"context"

	"crowdfund/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrOptimisticLock  = errors.New("account changed concurrently")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByIdentity(ctx context.Context, identity string) (*model.Account, error) {
	return r.getByIdentity(ctx, DB(ctx, r.db), identity, false)
}

// GetByIdentityForUpdate locks the account row inside the transaction
// carried by ctx.
func (r *AccountRepository) GetByIdentityForUpdate(ctx context.Context, identity string) (*model.Account, error) {
	return r.getByIdentity(ctx, DB(ctx, r.db), identity, true)
}

func (r *AccountRepository) getByIdentity(ctx context.Context, db *gorm.DB, identity string, forUpdate bool) (*model.Account, error) {
	q := db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account model.Account
	err := q.Where("identity = ?", identity).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Increase credits amount to the account. The optimistic version guard
// rejects a credit computed from a stale read.
func (r *AccountRepository) Increase(ctx context.Context, identity string, amount int64, version int) error {
	result := DB(ctx, r.db).WithContext(ctx).
		Model(&model.Account{}).
		Where("identity = ? AND version = ?", identity, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrOptimisticLock, "credit %s", identity)
	}

	return nil
}

func (r *AccountRepository) GetOrCreate(ctx context.Context, identity string) (*model.Account, error) {
	account, err := r.GetByIdentityForUpdate(ctx, identity)
	if err == nil {
		return account, nil
	}

	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		Identity: identity,
		Balance:  0,
	}

	err = DB(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoNothing: true,
		}).
		Create(newAccount).Error

	if err != nil {
		return nil, err
	}

	return r.GetByIdentityForUpdate(ctx, identity)
}

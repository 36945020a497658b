// Package wallet credits escrow payouts and refunds to recipient accounts.
package wallet

import (
	"context"
	"errors"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AccountWallet keeps balances in the MySQL account table. Each credit and
// its journal row commit in one transaction of their own, keyed by the
// transfer number so a repeated delivery credits once.
type AccountWallet struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountWallet(db *gorm.DB) *AccountWallet {
	return &AccountWallet{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

func (w *AccountWallet) Transfer(ctx context.Context, t *model.Transfer) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx := repository.WithDB(ctx, tx)

		_, err := w.transactionRepo.GetByTransferNo(ctx, t.TransferNo)
		if err == nil {
			log.WithField("transfer_no", t.TransferNo).Warn("[AccountWallet] duplicate transfer ignored")
			return nil
		}
		if !errors.Is(err, repository.ErrTransactionNotFound) {
			return pkgerrors.Wrap(err, "check transfer")
		}

		account, err := w.accountRepo.GetOrCreate(ctx, t.Recipient)
		if err != nil {
			return pkgerrors.Wrap(err, "load recipient account")
		}

		if err := w.accountRepo.Increase(ctx, t.Recipient, t.Amount, account.Version); err != nil {
			return pkgerrors.Wrap(err, "credit recipient account")
		}

		trans := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			Identity:      t.Recipient,
			CampaignID:    t.CampaignID,
			TransferNo:    t.TransferNo,
			Amount:        t.Amount,
			Type:          t.Kind,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + t.Amount,
		}
		if err := w.transactionRepo.Create(ctx, trans); err != nil {
			return pkgerrors.Wrap(err, "record account transaction")
		}

		log.WithFields(log.Fields{
			"transfer_no": t.TransferNo,
			"recipient":   t.Recipient,
			"amount":      t.Amount,
			"kind":        t.Kind,
		}).Debug("[AccountWallet] credited")
		return nil
	})
}

// Transferred reports whether the journal holds a credit for transferNo.
func (w *AccountWallet) Transferred(ctx context.Context, transferNo string) (bool, error) {
	_, err := w.transactionRepo.GetByTransferNo(ctx, transferNo)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return false, nil
	}
	return false, err
}

func (w *AccountWallet) Balance(ctx context.Context, identity string) (int64, error) {
	account, err := w.accountRepo.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

func (w *AccountWallet) Transactions(ctx context.Context, identity string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return w.transactionRepo.ListByIdentity(ctx, identity, page, pageSize)
}

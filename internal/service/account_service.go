package service

import (
	"context"
	"strings"

	"crowdfund/internal/model"

	"github.com/pkg/errors"
)

// Wallet is the read side of the accounts that payouts and refunds are
// credited to.
type Wallet interface {
	Balance(ctx context.Context, identity string) (int64, error)
	Transactions(ctx context.Context, identity string, page, pageSize int) ([]*model.AccountTransaction, int64, error)
}

type AccountService struct {
	wallet Wallet
}

func NewAccountService(wallet Wallet) *AccountService {
	return &AccountService{wallet: wallet}
}

var ErrIdentityRequired = errors.New("identity is required")

func (s *AccountService) GetBalance(ctx context.Context, identity string) (int64, error) {
	if strings.TrimSpace(identity) == "" {
		return 0, ErrIdentityRequired
	}
	return s.wallet.Balance(ctx, identity)
}

func (s *AccountService) ListTransactions(ctx context.Context, identity string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, 0, ErrIdentityRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return s.wallet.Transactions(ctx, identity, page, pageSize)
}

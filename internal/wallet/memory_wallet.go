package wallet

import (
	"context"
	"sync"
	"time"

	"crowdfund/internal/model"
	"crowdfund/pkg/idgen"
)

// MemoryWallet is the in-process wallet used with the memory store.
type MemoryWallet struct {
	mu        sync.Mutex
	balances  map[string]int64
	journal   []*model.AccountTransaction
	transfers map[string]bool
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{
		balances:  make(map[string]int64),
		transfers: make(map[string]bool),
	}
}

func (w *MemoryWallet) Transfer(ctx context.Context, t *model.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.transfers[t.TransferNo] {
		return nil
	}
	w.transfers[t.TransferNo] = true

	before := w.balances[t.Recipient]
	w.balances[t.Recipient] = before + t.Amount
	w.journal = append(w.journal, &model.AccountTransaction{
		ID:            int64(len(w.journal) + 1),
		TransactionNo: idgen.GenerateTransactionNo(),
		Identity:      t.Recipient,
		CampaignID:    t.CampaignID,
		TransferNo:    t.TransferNo,
		Amount:        t.Amount,
		Type:          t.Kind,
		BalanceBefore: before,
		BalanceAfter:  before + t.Amount,
		CreatedAt:     time.Now(),
	})
	return nil
}

func (w *MemoryWallet) Transferred(ctx context.Context, transferNo string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.transfers[transferNo], nil
}

func (w *MemoryWallet) Balance(ctx context.Context, identity string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[identity], nil
}

// Transactions pages the journal newest first.
func (w *MemoryWallet) Transactions(ctx context.Context, identity string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var matched []*model.AccountTransaction
	for i := len(w.journal) - 1; i >= 0; i-- {
		if w.journal[i].Identity == identity {
			cp := *w.journal[i]
			matched = append(matched, &cp)
		}
	}

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []*model.AccountTransaction{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

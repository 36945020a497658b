package service

import (
	"context"
	"testing"

	"crowdfund/internal/model"
	"crowdfund/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService(t *testing.T) {
	w := wallet.NewMemoryWallet()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, w.Transfer(ctx, &model.Transfer{TransferNo: "REF", CampaignID: 1, Recipient: alice, Amount: 5, Kind: model.TransferKindRefund}))
	}
	svc := NewAccountService(w)

	balance, err := svc.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	list, total, err := svc.ListTransactions(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, list, defaultPageSize)

	list, _, err = svc.ListTransactions(ctx, alice, 2, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.GetBalance(ctx, "  ")
	assert.ErrorIs(t, err, ErrIdentityRequired)
	_, _, err = svc.ListTransactions(ctx, "", 1, 10)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

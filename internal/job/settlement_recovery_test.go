package job

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/internal/service"
	"crowdfund/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecoverer struct {
	mock.Mock
}

func (m *mockRecoverer) RecoverSettlements(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	args := m.Called(staleAfter, limit)
	return args.Int(0), args.Error(1)
}

func TestSettlementRecovery_RecoverStale(t *testing.T) {
	recoverer := new(mockRecoverer)
	recoverer.On("RecoverSettlements", 5*time.Minute, 20).Return(2, nil).Once()
	recoverer.On("RecoverSettlements", 5*time.Minute, 20).Return(0, errors.New("db down")).Once()

	job := NewSettlementRecovery(recoverer, time.Hour, 5*time.Minute, 20)
	assert.Equal(t, 2, job.RecoverStale(context.Background()))
	assert.Zero(t, job.RecoverStale(context.Background()))
	recoverer.AssertExpectations(t)
}

// crashedWithdrawal leaves a campaign the way a process that died between
// the commit and the transfer would.
func crashedWithdrawal(t *testing.T, repo *repository.MemoryRepository, startedAt time.Time) *model.Transfer {
	t.Helper()
	now := time.Now()
	c, err := model.NewCampaign("owner", "t", "d", "", 100, now.Unix()+3600, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), c, now))

	transfer := &model.Transfer{TransferNo: "PAY-" + strconv.FormatInt(c.ID, 10), CampaignID: c.ID, Recipient: "owner", Amount: 100, Kind: model.TransferKindPayout}
	err = repo.Transaction(context.Background(), c.ID, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.SetContribution("alice", 100); err != nil {
			return err
		}
		tx.Campaign().TotalContributions = 100
		tx.Campaign().Status = model.CampaignStatusSuccessful
		tx.Campaign().Settlement = model.OpenSettlement(transfer, model.CampaignStatusActive, startedAt)
		return tx.SaveCampaign()
	})
	require.NoError(t, err)
	return transfer
}

func TestSettlementRecovery_ClosesCrashedSettlements(t *testing.T) {
	repo := repository.NewMemoryRepository("events")
	w := wallet.NewMemoryWallet()
	svc := service.NewCampaignService(repo, w)
	ctx := context.Background()

	lost := crashedWithdrawal(t, repo, time.Now().Add(-time.Hour))
	paid := crashedWithdrawal(t, repo, time.Now().Add(-time.Hour))
	fresh := crashedWithdrawal(t, repo, time.Now())
	require.NoError(t, w.Transfer(ctx, paid))

	job := NewSettlementRecovery(svc, time.Hour, 5*time.Minute, 10)
	assert.Equal(t, 2, job.RecoverStale(ctx))

	c, err := repo.Get(ctx, lost.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, c.Status)
	assert.False(t, c.Settlement.Open())

	c, err = repo.Get(ctx, paid.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusSuccessful, c.Status)
	assert.False(t, c.Settlement.Open())

	var withdrawn []int64
	for _, ev := range repo.Events() {
		if ev.Type == model.EventFundWithdrawn {
			withdrawn = append(withdrawn, ev.CampaignID)
		}
	}
	assert.Equal(t, []int64{paid.CampaignID}, withdrawn)

	// still inside its transfer window
	c, err = repo.Get(ctx, fresh.CampaignID)
	require.NoError(t, err)
	assert.True(t, c.Settlement.Open())

	balance, _ := w.Balance(ctx, "owner")
	assert.Equal(t, int64(100), balance)
}

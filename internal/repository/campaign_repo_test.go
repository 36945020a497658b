package repository

import (
	"context"
	"os"
	"testing"

	"crowdfund/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mysqlDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("CROWDFUND_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CROWDFUND_TEST_MYSQL_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	models := []interface{}{&model.Campaign{}, &model.Contribution{}, &model.Account{}, &model.AccountTransaction{}, &model.OutboxMessage{}}
	require.NoError(t, db.Migrator().DropTable(models...))
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func TestCampaignRepository_Lifecycle(t *testing.T) {
	db := mysqlDB(t)
	repo := NewCampaignRepository(db, "events")
	ctx := context.Background()

	c, err := model.NewCampaign("owner", "t", "d", "", 100, testNow.Unix()+60, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, c, testNow))
	assert.NotZero(t, c.ID)

	err = repo.Transaction(ctx, c.ID, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetContribution("alice", 40))
		tx.Campaign().TotalContributions = 40
		tx.Campaign().ContributorCount = 1
		require.NoError(t, tx.SaveCampaign())
		return tx.Emit(model.Contributed(c.ID, "alice", 40, testNow))
	})
	require.NoError(t, err)

	// a failing fn leaves nothing behind
	boom := errors.New("boom")
	err = repo.Transaction(ctx, c.ID, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SetContribution("alice", 0))
		tx.Campaign().Status = model.CampaignStatusFailed
		require.NoError(t, tx.SaveCampaign())
		require.NoError(t, tx.Emit(model.StatusUpdated(c.ID, model.CampaignStatusFailed, testNow)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.TotalContributions)
	assert.Equal(t, model.CampaignStatusActive, got.Status)

	balance, err := repo.Contribution(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	pending, err := NewOutboxRepository(db).GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	transfer := &model.Transfer{TransferNo: "REF1", CampaignID: c.ID, Recipient: "alice", Amount: 40, Kind: model.TransferKindRefund}
	err = repo.Transaction(ctx, c.ID, func(ctx context.Context, tx Tx) error {
		tx.Campaign().Settlement = model.OpenSettlement(transfer, model.CampaignStatusActive, testNow)
		return tx.SaveCampaign()
	})
	require.NoError(t, err)

	open, err := repo.OpenSettlements(ctx, testNow.Unix(), 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, transfer, open[0].Settlement.Transfer(c.ID))

	open, err = repo.OpenSettlements(ctx, testNow.Unix()-1, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = repo.Get(ctx, c.ID+100)
	assert.ErrorIs(t, err, model.ErrCampaignNotFound)
	err = repo.Transaction(ctx, c.ID+100, func(ctx context.Context, tx Tx) error { return nil })
	assert.ErrorIs(t, err, model.ErrCampaignNotFound)
}

func TestAccountRepository_CreditFollowsContextTransaction(t *testing.T) {
	db := mysqlDB(t)
	accounts := NewAccountRepository(db)
	ctx := context.Background()

	credit := func(fail bool) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ctx := WithDB(ctx, tx)
			account, err := accounts.GetOrCreate(ctx, "owner")
			if err != nil {
				return err
			}
			if err := accounts.Increase(ctx, "owner", 25, account.Version); err != nil {
				return err
			}
			if fail {
				return errors.New("rolled back")
			}
			return nil
		})
	}

	require.Error(t, credit(true))
	require.NoError(t, credit(false))

	account, err := accounts.GetByIdentity(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(25), account.Balance)
}

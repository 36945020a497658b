package repository

import (
	"context"
	"time"

	"crowdfund/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepository is the MySQL campaign store. Campaign ids come from the
// table's AUTO_INCREMENT column, so concurrent creates never collide.
type CampaignRepository struct {
	db    *gorm.DB
	topic string
}

func NewCampaignRepository(db *gorm.DB, topic string) *CampaignRepository {
	return &CampaignRepository{db: db, topic: topic}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return errors.Wrap(err, "insert campaign")
		}
		msg, err := model.CampaignCreated(c, at).OutboxMessage(r.topic)
		if err != nil {
			return err
		}
		return errors.Wrap(tx.Create(msg).Error, "insert outbox message")
	})
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCampaignNotFound.For(id)
		}
		return nil, errors.Wrapf(err, "get campaign %d", id)
	}
	return &c, nil
}

func (r *CampaignRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Campaign{}).Count(&total).Error
	return total, errors.Wrap(err, "count campaigns")
}

func (r *CampaignRepository) List(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, errors.Wrap(err, "list campaigns")
}

func (r *CampaignRepository) Contribution(ctx context.Context, id int64, contributor string) (int64, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return 0, err
	}
	return contributionOf(r.db.WithContext(ctx), id, contributor)
}

func (r *CampaignRepository) Contributions(ctx context.Context, id int64) ([]*model.Contribution, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	var list []*model.Contribution
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", id).
		Order("id ASC").
		Find(&list).Error
	return list, errors.Wrap(err, "list contributions")
}

func (r *CampaignRepository) OpenSettlements(ctx context.Context, startedBefore int64, limit int) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	err := r.db.WithContext(ctx).
		Where("settlement_transfer_no <> '' AND settlement_started_at <= ?", startedBefore).
		Order("id ASC").
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, errors.Wrap(err, "list open settlements")
}

// Transaction locks the campaign row with SELECT ... FOR UPDATE for the
// whole of fn.
func (r *CampaignRepository) Transaction(ctx context.Context, id int64, fn func(ctx context.Context, tx Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var c model.Campaign
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&c).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrCampaignNotFound.For(id)
			}
			return errors.Wrapf(err, "lock campaign %d", id)
		}

		return fn(WithDB(ctx, db), &gormTx{db: db, campaign: &c, topic: r.topic})
	})
}

func contributionOf(db *gorm.DB, id int64, contributor string) (int64, error) {
	var rec model.Contribution
	err := db.Where("campaign_id = ? AND contributor = ?", id, contributor).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get contribution")
	}
	return rec.Amount, nil
}

type gormTx struct {
	db       *gorm.DB
	campaign *model.Campaign
	topic    string
}

func (tx *gormTx) Campaign() *model.Campaign {
	return tx.campaign
}

func (tx *gormTx) Contribution(contributor string) (int64, error) {
	return contributionOf(tx.db, tx.campaign.ID, contributor)
}

func (tx *gormTx) SetContribution(contributor string, amount int64) error {
	rec := &model.Contribution{
		CampaignID:  tx.campaign.ID,
		Contributor: contributor,
		Amount:      amount,
	}
	err := tx.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "contributor"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(rec).Error
	return errors.Wrap(err, "upsert contribution")
}

func (tx *gormTx) SaveCampaign() error {
	c := tx.campaign
	err := tx.db.Model(&model.Campaign{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"total_contributions":     c.TotalContributions,
			"refunded_amount":         c.RefundedAmount,
			"contributor_count":       c.ContributorCount,
			"status":                  c.Status,
			"settlement_transfer_no":  c.Settlement.TransferNo,
			"settlement_kind":         c.Settlement.Kind,
			"settlement_recipient":    c.Settlement.Recipient,
			"settlement_amount":       c.Settlement.Amount,
			"settlement_prior_status": c.Settlement.PriorStatus,
			"settlement_started_at":   c.Settlement.StartedAt,
		}).Error
	return errors.Wrap(err, "update campaign")
}

func (tx *gormTx) Emit(e model.Event) error {
	msg, err := e.OutboxMessage(tx.topic)
	if err != nil {
		return err
	}
	return errors.Wrap(tx.db.Create(msg).Error, "insert outbox message")
}

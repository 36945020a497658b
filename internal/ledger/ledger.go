// Package ledger keeps per-contributor balances of a campaign in step with
// the campaign total. Every write happens inside a repository.Tx, so the
// record and the total commit together or not at all.
package ledger

import (
	"context"
	"math"
	"time"

	"crowdfund/internal/escrow"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
)

// Receipt describes the contributor's position after a contribution.
type Receipt struct {
	CampaignID  int64  `json:"campaign_id"`
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
	Balance     int64  `json:"balance"`
	First       bool   `json:"first"`
}

// Record adds amount to the contributor's cumulative balance and to the
// campaign total. A contributor counts as new when their balance was zero
// before this call.
func Record(tx repository.Tx, contributor string, amount int64, now time.Time) (*Receipt, error) {
	if amount <= 0 {
		return nil, model.ErrContributionZero
	}

	c := tx.Campaign()
	if err := escrow.CheckContribute(c, now); err != nil {
		return nil, err
	}

	balance, err := tx.Contribution(contributor)
	if err != nil {
		return nil, err
	}
	if c.TotalContributions > math.MaxInt64-amount {
		return nil, model.ErrContributionOverflow.For(c.ID)
	}

	first := balance == 0
	if err := tx.SetContribution(contributor, balance+amount); err != nil {
		return nil, err
	}
	c.TotalContributions += amount
	if first {
		c.ContributorCount++
	}
	if err := tx.SaveCampaign(); err != nil {
		return nil, err
	}

	return &Receipt{
		CampaignID:  c.ID,
		Contributor: contributor,
		Amount:      amount,
		Balance:     balance + amount,
		First:       first,
	}, nil
}

// Drain zeroes the contributor's balance and moves it from the campaign
// total to the refunded amount, so the total keeps matching the sum of the
// remaining balances. It returns what the balance held.
func Drain(tx repository.Tx, contributor string) (int64, error) {
	balance, err := tx.Contribution(contributor)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, nil
	}
	if err := tx.SetContribution(contributor, 0); err != nil {
		return 0, err
	}

	c := tx.Campaign()
	c.TotalContributions -= balance
	c.RefundedAmount += balance
	if err := tx.SaveCampaign(); err != nil {
		return 0, err
	}
	return balance, nil
}

// Restore undoes a Drain of amount whose refund transfer did not happen.
func Restore(tx repository.Tx, contributor string, amount int64) error {
	balance, err := tx.Contribution(contributor)
	if err != nil {
		return err
	}
	if err := tx.SetContribution(contributor, balance+amount); err != nil {
		return err
	}

	c := tx.Campaign()
	c.TotalContributions += amount
	c.RefundedAmount -= amount
	return tx.SaveCampaign()
}

// BalanceOf is a read of committed state. Missing records read as zero.
func BalanceOf(ctx context.Context, repo repository.Repository, id int64, contributor string) (int64, error) {
	return repo.Contribution(ctx, id, contributor)
}

// Package escrow decides which campaign transitions are legal.
//
// Status is evaluated lazily: nothing moves a campaign out of ACTIVE except a
// withdrawal by the owner (goal met) or a refund by a contributor (deadline
// passed and goal missed). There is no timer.
package escrow

import (
	"time"

	"crowdfund/internal/model"
)

// CheckWithdraw validates a payout request. Preconditions are checked in
// order: ownership, then status, then goal. The deadline does not matter.
func CheckWithdraw(c *model.Campaign, caller string) error {
	if caller != c.Owner {
		return model.ErrNotCampaignOwner.For(c.ID)
	}
	if c.Status != model.CampaignStatusActive {
		return model.ErrAlreadyFinalized.For(c.ID)
	}
	if !c.GoalReached() {
		return model.ErrGoalNotReached.For(c.ID)
	}
	return nil
}

// CheckRefund validates a refund request for a contributor holding balance.
// A goal that was reached by the deadline blocks refunds even while the
// campaign is still ACTIVE: the owner's payout right takes precedence.
func CheckRefund(c *model.Campaign, balance int64, now time.Time) error {
	if !c.DeadlinePassed(now) {
		return model.ErrDeadlineNotPassed.For(c.ID)
	}
	switch c.Status {
	case model.CampaignStatusSuccessful:
		return model.ErrGoalWasReached.For(c.ID)
	case model.CampaignStatusActive:
		if c.GoalReached() {
			return model.ErrGoalWasReached.For(c.ID)
		}
	}
	if balance <= 0 {
		return model.ErrNoContribution.For(c.ID)
	}
	return nil
}

// CheckContribute validates that a campaign still accepts funds.
func CheckContribute(c *model.Campaign, now time.Time) error {
	if c.Status != model.CampaignStatusActive {
		return model.ErrCampaignNotActive.For(c.ID)
	}
	if c.DeadlinePassed(now) {
		return model.ErrCampaignExpired.For(c.ID)
	}
	return nil
}

// Transition moves c to a terminal status. It reports whether the status
// changed; failing a campaign that is already FAILED is a no-op so later
// refunds can share the path.
func Transition(c *model.Campaign, to model.CampaignStatus) (bool, error) {
	if c.Status == to && to == model.CampaignStatusFailed {
		return false, nil
	}
	if !model.CanTransitionTo(c.Status, to) {
		return false, model.ErrAlreadyFinalized.For(c.ID)
	}
	c.Status = to
	return true, nil
}

// CheckIdle rejects a mutation while a payout or refund transfer of the
// campaign is still unconfirmed. It runs after the operation's own
// preconditions, so a caller that is already settled sees those first.
func CheckIdle(c *model.Campaign) error {
	if c.Settlement.Open() {
		return model.ErrSettlementPending.For(c.ID)
	}
	return nil
}

package service

import (
	"context"
	"time"

	"crowdfund/internal/model"
)

// Transferer moves escrowed funds out of a campaign. It is called after the
// withdrawal or refund has committed and outside any campaign lock, so a call
// back into CampaignService made from inside Transfer sees the campaign
// already finalized or the balance already zeroed and is rejected.
type Transferer interface {
	Transfer(ctx context.Context, t *model.Transfer) error
}

// TransferLookup is implemented by transferers that can tell whether a
// transfer number was delivered. Without it a failed Transfer is taken at its
// word and open settlements are never recovered.
type TransferLookup interface {
	Transferred(ctx context.Context, transferNo string) (bool, error)
}

// Locker serialises mutating operations on one campaign across server
// instances. A nil Locker relies on the store's own per-campaign locking.
type Locker interface {
	Lock(ctx context.Context, campaignID int64) (unlock func(), err error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

package service

import (
	"context"
	"math"
	"time"

	"crowdfund/internal/escrow"
	"crowdfund/internal/ledger"
	"crowdfund/internal/metrics"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CampaignService is the entry point for every campaign operation. Callers
// pass their identity explicitly; nothing is read from ambient state.
type CampaignService struct {
	repo            repository.Repository
	transferer      Transferer
	locker          Locker
	clock           Clock
	transferTimeout time.Duration
}

type Option func(*CampaignService)

func WithLocker(l Locker) Option {
	return func(s *CampaignService) { s.locker = l }
}

func WithClock(c Clock) Option {
	return func(s *CampaignService) { s.clock = c }
}

// WithTransferTimeout bounds each payout or refund transfer. Zero means none.
func WithTransferTimeout(d time.Duration) Option {
	return func(s *CampaignService) { s.transferTimeout = d }
}

func NewCampaignService(repo repository.Repository, transferer Transferer, opts ...Option) *CampaignService {
	s := &CampaignService{
		repo:       repo,
		transferer: transferer,
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCampaignRequest struct {
	Title           string
	Description     string
	GoalAmount      int64
	DurationSeconds int64
	ImageURL        string
}

type WithdrawResult struct {
	CampaignID int64                `json:"campaign_id"`
	Amount     int64                `json:"amount"`
	TransferNo string               `json:"transfer_no"`
	Status     model.CampaignStatus `json:"status"`
}

type RefundResult struct {
	CampaignID  int64                `json:"campaign_id"`
	Contributor string               `json:"contributor"`
	Amount      int64                `json:"amount"`
	TransferNo  string               `json:"transfer_no"`
	Status      model.CampaignStatus `json:"status"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, owner string, req *CreateCampaignRequest) (c *model.Campaign, err error) {
	defer func() { metrics.ObserveOperation("create", err) }()

	now := s.clock.Now()
	if req.GoalAmount <= 0 {
		return nil, model.ErrInvalidGoal
	}
	if req.DurationSeconds <= 0 || req.DurationSeconds > math.MaxInt64-now.Unix() {
		return nil, model.ErrInvalidDeadline
	}

	c, err = model.NewCampaign(owner, req.Title, req.Description, req.ImageURL,
		req.GoalAmount, now.Unix()+req.DurationSeconds, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c, now); err != nil {
		return nil, errors.Wrap(err, "create campaign")
	}

	log.WithFields(log.Fields{
		"campaign_id": c.ID,
		"owner":       owner,
		"goal":        c.GoalAmount,
		"deadline":    c.Deadline,
	}).Info("[CampaignService] campaign created")
	return c, nil
}

func (s *CampaignService) Contribute(ctx context.Context, id int64, contributor string, amount int64) (receipt *ledger.Receipt, err error) {
	defer func() { metrics.ObserveOperation("contribute", err) }()

	// rejected before any lock is taken: no state is touched
	if amount <= 0 {
		return nil, model.ErrContributionZero
	}

	err = s.transaction(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		now := s.clock.Now()
		r, err := ledger.Record(tx, contributor, amount, now)
		if err != nil {
			return err
		}
		if err := tx.Emit(model.Contributed(id, contributor, amount, now)); err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EscrowedAmount.Add(float64(amount))
	log.WithFields(log.Fields{
		"campaign_id": id,
		"contributor": contributor,
		"amount":      amount,
		"balance":     receipt.Balance,
	}).Info("[CampaignService] contribution recorded")
	return receipt, nil
}

// WithdrawFunds pays the whole campaign total to its owner. The SUCCESSFUL
// status commits before the transfer starts, so a withdrawal that reenters
// from inside the transfer, on any ctx, fails with AlreadyFinalized.
func (s *CampaignService) WithdrawFunds(ctx context.Context, id int64, caller string) (result *WithdrawResult, err error) {
	defer func() { metrics.ObserveOperation("withdraw", err) }()

	var transfer *model.Transfer
	err = s.transaction(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		c := tx.Campaign()
		if err := escrow.CheckWithdraw(c, caller); err != nil {
			return err
		}
		if err := escrow.CheckIdle(c); err != nil {
			return err
		}

		prior := c.Status
		if _, err := escrow.Transition(c, model.CampaignStatusSuccessful); err != nil {
			return err
		}
		transfer = &model.Transfer{
			TransferNo: idgen.GeneratePayoutNo(),
			CampaignID: id,
			Recipient:  c.Owner,
			Amount:     c.TotalContributions,
			Kind:       model.TransferKindPayout,
		}
		c.Settlement = model.OpenSettlement(transfer, prior, s.clock.Now())
		return tx.SaveCampaign()
	})
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, transfer); err != nil {
		return nil, errors.Wrapf(err, "payout %s", transfer.TransferNo)
	}

	log.WithFields(log.Fields{
		"campaign_id": id,
		"amount":      transfer.Amount,
		"transfer_no": transfer.TransferNo,
	}).Info("[CampaignService] funds withdrawn")
	return &WithdrawResult{
		CampaignID: id,
		Amount:     transfer.Amount,
		TransferNo: transfer.TransferNo,
		Status:     model.CampaignStatusSuccessful,
	}, nil
}

// Refund returns the caller's whole balance once the deadline has passed
// without the goal being met. The first refund moves the campaign to FAILED;
// later refunds on the same campaign skip that step. The zeroed balance
// commits before the transfer starts, and other refunds of the campaign are
// rejected with SettlementPending until it is confirmed.
func (s *CampaignService) Refund(ctx context.Context, id int64, caller string) (result *RefundResult, err error) {
	defer func() { metrics.ObserveOperation("refund", err) }()

	var transfer *model.Transfer
	err = s.transaction(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		c := tx.Campaign()
		now := s.clock.Now()

		balance, err := tx.Contribution(caller)
		if err != nil {
			return err
		}
		if err := escrow.CheckRefund(c, balance, now); err != nil {
			return err
		}
		if err := escrow.CheckIdle(c); err != nil {
			return err
		}

		prior := c.Status
		amount, err := ledger.Drain(tx, caller)
		if err != nil {
			return err
		}
		if _, err := escrow.Transition(c, model.CampaignStatusFailed); err != nil {
			return err
		}
		transfer = &model.Transfer{
			TransferNo: idgen.GenerateRefundNo(),
			CampaignID: id,
			Recipient:  caller,
			Amount:     amount,
			Kind:       model.TransferKindRefund,
		}
		c.Settlement = model.OpenSettlement(transfer, prior, now)
		return tx.SaveCampaign()
	})
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, transfer); err != nil {
		return nil, errors.Wrapf(err, "refund %s", transfer.TransferNo)
	}

	log.WithFields(log.Fields{
		"campaign_id": id,
		"contributor": caller,
		"amount":      transfer.Amount,
		"transfer_no": transfer.TransferNo,
	}).Info("[CampaignService] refund issued")
	return &RefundResult{
		CampaignID:  id,
		Contributor: caller,
		Amount:      transfer.Amount,
		TransferNo:  transfer.TransferNo,
		Status:      model.CampaignStatusFailed,
	}, nil
}

// RecoverSettlements closes settlements left open for longer than staleAfter,
// e.g. by a crash between the commit and the transfer. A transfer the wallet
// knows about is finalized, any other is compensated. It returns how many
// settlements it closed.
func (s *CampaignService) RecoverSettlements(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	lookup, ok := s.transferer.(TransferLookup)
	if !ok {
		return 0, nil
	}

	campaigns, err := s.repo.OpenSettlements(ctx, s.clock.Now().Add(-staleAfter).Unix(), limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, c := range campaigns {
		t := c.Settlement.Transfer(c.ID)
		entry := log.WithFields(log.Fields{
			"campaign_id": c.ID,
			"transfer_no": t.TransferNo,
			"kind":        t.Kind,
		})

		delivered, err := lookup.Transferred(ctx, t.TransferNo)
		if err != nil {
			entry.WithError(err).Warn("[CampaignService] transfer lookup failed")
			continue
		}
		closed, err := s.closeSettlement(ctx, t, delivered)
		if err != nil {
			entry.WithError(err).Warn("[CampaignService] close settlement failed")
			continue
		}
		if closed {
			n++
			entry.WithField("delivered", delivered).Info("[CampaignService] settlement recovered")
		}
	}
	return n, nil
}

// settle runs the transfer of an open settlement and closes it. A transfer
// that reports an error but was delivered anyway counts as delivered; one
// whose outcome cannot be looked up stays open for RecoverSettlements.
func (s *CampaignService) settle(ctx context.Context, t *model.Transfer) error {
	terr := s.transfer(ctx, t)
	delivered := terr == nil
	closeCtx := context.WithoutCancel(ctx)

	if terr != nil {
		if lookup, ok := s.transferer.(TransferLookup); ok {
			done, err := lookup.Transferred(closeCtx, t.TransferNo)
			if err != nil {
				log.WithError(err).WithField("transfer_no", t.TransferNo).
					Error("[CampaignService] transfer outcome unknown, settlement left open")
				return terr
			}
			delivered = done
		}
	}

	if _, err := s.closeSettlement(closeCtx, t, delivered); err != nil {
		log.WithError(err).WithField("transfer_no", t.TransferNo).
			Error("[CampaignService] close settlement failed, left for recovery")
	}
	if !delivered {
		return terr
	}
	if terr != nil {
		log.WithError(terr).WithField("transfer_no", t.TransferNo).
			Warn("[CampaignService] transfer reported an error but was delivered")
	}
	return nil
}

func (s *CampaignService) transfer(ctx context.Context, t *model.Transfer) error {
	if s.transferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.transferTimeout)
		defer cancel()
	}
	return s.transferer.Transfer(ctx, t)
}

// closeSettlement finalizes or compensates the settlement of t. It reports
// false when the settlement was already closed by someone else.
func (s *CampaignService) closeSettlement(ctx context.Context, t *model.Transfer, delivered bool) (closed bool, err error) {
	err = s.transaction(ctx, t.CampaignID, func(ctx context.Context, tx repository.Tx) error {
		if tx.Campaign().Settlement.TransferNo != t.TransferNo {
			return nil
		}
		closed = true
		if delivered {
			return s.finalize(tx)
		}
		return compensate(tx)
	})
	if err != nil {
		return false, err
	}
	if closed && delivered {
		metrics.EscrowedAmount.Sub(float64(t.Amount))
	}
	return closed, nil
}

// finalize emits the events of a delivered settlement and clears it.
func (s *CampaignService) finalize(tx repository.Tx) error {
	c := tx.Campaign()
	st := c.Settlement
	now := s.clock.Now()

	var events []model.Event
	switch st.Kind {
	case model.TransferKindPayout:
		events = append(events,
			model.FundWithdrawn(c.ID, st.Amount, now),
			model.StatusUpdated(c.ID, model.CampaignStatusSuccessful, now))
	case model.TransferKindRefund:
		if st.PriorStatus != model.CampaignStatusFailed {
			events = append(events, model.StatusUpdated(c.ID, model.CampaignStatusFailed, now))
		}
		events = append(events, model.RefundIssued(c.ID, st.Recipient, st.Amount, now))
	}

	c.Settlement = model.Settlement{}
	if err := tx.SaveCampaign(); err != nil {
		return err
	}
	for _, ev := range events {
		if err := tx.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// compensate undoes a settlement whose transfer never happened. Restoring the
// prior status is a rollback, not a status transition.
func compensate(tx repository.Tx) error {
	c := tx.Campaign()
	st := c.Settlement

	if st.Kind == model.TransferKindRefund {
		if err := ledger.Restore(tx, st.Recipient, st.Amount); err != nil {
			return err
		}
	}
	c.Status = st.PriorStatus
	c.Settlement = model.Settlement{}
	return tx.SaveCampaign()
}

func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.repo.Get(ctx, id)
}

func (s *CampaignService) GetUserContribution(ctx context.Context, id int64, contributor string) (int64, error) {
	return ledger.BalanceOf(ctx, s.repo, id, contributor)
}

func (s *CampaignService) CampaignCount(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ListCampaigns pages through campaigns newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int) ([]*model.Campaign, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	campaigns, err := s.repo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (s *CampaignService) ListContributions(ctx context.Context, id int64) ([]*model.Contribution, error) {
	return s.repo.Contributions(ctx, id)
}

// transaction runs fn under the cross-instance campaign lock when one is
// configured, then under the store's own campaign transaction.
func (s *CampaignService) transaction(ctx context.Context, id int64, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "lock campaign %d", id)
		}
		defer unlock()
	}
	return s.repo.Transaction(ctx, id, fn)
}

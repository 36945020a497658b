package job

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// SettlementRecoverer closes payout and refund settlements that outlived
// their transfer.
type SettlementRecoverer interface {
	RecoverSettlements(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// SettlementRecovery periodically hands stale settlements back to the
// campaign service, e.g. after the process died between committing a
// withdrawal and confirming its transfer.
type SettlementRecovery struct {
	recoverer  SettlementRecoverer
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
}

func NewSettlementRecovery(recoverer SettlementRecoverer, interval, staleAfter time.Duration, batchSize int) *SettlementRecovery {
	return &SettlementRecovery{
		recoverer:  recoverer,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
	}
}

func (r *SettlementRecovery) Start(ctx context.Context) {
	log.WithField("stale_after", r.staleAfter).Info("[SettlementRecovery] started")

	// a restart picks up what the previous process left open right away
	r.RecoverStale(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[SettlementRecovery] stopped")
			return
		case <-ticker.C:
			r.RecoverStale(ctx)
		}
	}
}

func (r *SettlementRecovery) RecoverStale(ctx context.Context) int {
	n, err := r.recoverer.RecoverSettlements(ctx, r.staleAfter, r.batchSize)
	if err != nil {
		log.WithError(err).Error("[SettlementRecovery] recover settlements failed")
		return 0
	}
	if n > 0 {
		log.WithField("count", n).Info("[SettlementRecovery] closed stale settlements")
	}
	return n
}

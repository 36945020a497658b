package job

import (
	"context"
	"time"

	"crowdfund/internal/repository"

	log "github.com/sirupsen/logrus"
)

// OutboxRequeue gives FAILED messages another round once they have rested
// for coolDown, so a broker outage does not strand events forever.
type OutboxRequeue struct {
	store     repository.OutboxStore
	interval  time.Duration
	coolDown  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOutboxRequeue(store repository.OutboxStore, interval, coolDown time.Duration, batchSize int) *OutboxRequeue {
	return &OutboxRequeue{
		store:     store,
		interval:  interval,
		coolDown:  coolDown,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (r *OutboxRequeue) Start(ctx context.Context) {
	log.WithField("cool_down", r.coolDown).Info("[OutboxRequeue] started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[OutboxRequeue] stopped")
			return
		case <-ticker.C:
			r.RequeueFailed(ctx)
		}
	}
}

func (r *OutboxRequeue) RequeueFailed(ctx context.Context) int {
	messages, err := r.store.GetFailedMessages(ctx, r.batchSize)
	if err != nil {
		log.WithError(err).Error("[OutboxRequeue] load failed messages failed")
		return 0
	}

	cutoff := r.now().Add(-r.coolDown)
	n := 0
	for _, msg := range messages {
		if msg.UpdatedAt.After(cutoff) {
			continue
		}
		if err := r.store.Requeue(ctx, msg.ID); err != nil {
			log.WithError(err).WithField("id", msg.ID).Error("[OutboxRequeue] requeue failed")
			continue
		}
		n++
	}
	if n > 0 {
		log.WithField("count", n).Info("[OutboxRequeue] requeued failed messages")
	}
	return n
}

package job

import (
	"context"
	"time"

	"crowdfund/internal/metrics"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Producer is the broker side of the relay.
type Producer interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender relays committed outbox messages to the broker. Delivery is
// at least once; consumers dedupe on the event payload.
type OutboxSender struct {
	store     repository.OutboxStore
	producer  Producer
	interval  time.Duration
	batchSize int
	maxRetry  int
}

func NewOutboxSender(store repository.OutboxStore, producer Producer, interval time.Duration, batchSize, maxRetry int) *OutboxSender {
	return &OutboxSender{
		store:     store,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
		maxRetry:  maxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.WithField("interval", s.interval).Info("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// flush what is already committed before leaving
			s.ProcessPending(context.Background())
			log.Info("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

// ProcessPending relays one batch and returns how many messages were sent.
// Once a message fails, later messages with the same key are held back for
// the next round so a campaign's events reach the broker in commit order.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.store.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.WithError(err).Error("[OutboxSender] load pending messages failed")
		return 0
	}

	sent := 0
	blocked := make(map[string]bool)
	for _, msg := range messages {
		if blocked[msg.MessageKey] {
			continue
		}
		if s.send(ctx, msg) {
			sent++
		} else {
			blocked[msg.MessageKey] = true
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) bool {
	fields := log.Fields{"id": msg.ID, "topic": msg.Topic, "key": msg.MessageKey}

	err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxSentTotal.WithLabelValues("sent").Inc()
		if err := s.store.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
			log.WithFields(fields).WithError(err).Error("[OutboxSender] mark sent failed")
		} else {
			log.WithFields(fields).Debug("[OutboxSender] sent")
		}
		return true
	}

	metrics.OutboxSentTotal.WithLabelValues("error").Inc()
	log.WithFields(fields).WithError(err).Warn("[OutboxSender] send failed")

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.store.MarkAsFailed(ctx, msg.ID); err != nil {
			log.WithFields(fields).WithError(err).Error("[OutboxSender] mark failed failed")
		} else {
			log.WithFields(fields).Warn("[OutboxSender] retries exhausted, marked failed")
		}
		return false
	}

	if err := s.store.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.WithFields(fields).WithError(err).Error("[OutboxSender] increment retry failed")
	}
	return false
}

package mq

import (
	"crowdfund/internal/config"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Producer publishes outbox payloads to Kafka. It waits for every in-sync
// replica so a relayed message is never marked sent before it is durable.
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}

	log.WithField("brokers", cfg.Brokers).Info("[Kafka] producer ready")
	return NewProducerFrom(producer), nil
}

// NewProducerFrom wraps an existing SyncProducer, e.g. sarama's mocks.
func NewProducerFrom(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// SendMessage publishes value under key. Messages with the same key, one
// campaign, land on the same partition and keep their order.
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// LogProducer stands in for Kafka when the broker is disabled. Events are
// still relayed, to the process log.
type LogProducer struct{}

func (LogProducer) SendMessage(topic, key, value string) error {
	log.WithFields(log.Fields{"topic": topic, "key": key}).Info("[Event] " + value)
	return nil
}

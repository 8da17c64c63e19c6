// Package kafka publishes execution lifecycle events to a topic. The
// publisher is optional; a nil *Publisher drops events.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/flowbase-io/flowbase/internal/platform/config"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

// LifecycleEvent is the payload published for execution transitions.
type LifecycleEvent struct {
	Event       string    `json:"event"`
	ExecutionID string    `json:"executionId"`
	WorkflowID  string    `json:"workflowId"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

// Publisher wraps an async sarama producer.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      logger.Logger
}

// NewPublisher connects an async producer. Returns nil without error
// when kafka is disabled in config.
func NewPublisher(cfg config.KafkaConfig, log logger.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = 3

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &Publisher{producer: producer, topic: cfg.Topic, log: log}
	go p.drainErrors()
	return p, nil
}

func (p *Publisher) drainErrors() {
	for err := range p.producer.Errors() {
		p.log.Error("kafka publish failed", "topic", err.Msg.Topic, "error", err.Err)
	}
}

// Publish enqueues a lifecycle event keyed by execution id.
func (p *Publisher) Publish(event LifecycleEvent) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal lifecycle event", "error", err)
		return
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ExecutionID),
		Value: sarama.ByteEncoder(payload),
	}
}

// Close flushes pending messages and shuts the producer down.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}

package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// KafkaPublish produces one message to a topic through a shared
// synchronous producer.
type KafkaPublish struct {
	producer sarama.SyncProducer
}

func NewKafkaPublish(producer sarama.SyncProducer) *KafkaPublish {
	return &KafkaPublish{producer: producer}
}

func (k *KafkaPublish) Type() string { return "kafka_publish" }

func (k *KafkaPublish) ConfigSchema() map[string]interface{} {
	return schema([]string{"topic", "message"}, map[string]interface{}{
		"topic":   prop("string", "Destination topic"),
		"key":     prop("string", "Optional partition key"),
		"message": prop("object", "Payload, JSON encoded"),
	})
}

func (k *KafkaPublish) Execute(_ context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	if k.producer == nil {
		return nil, errors.New("kafka is not configured")
	}
	topic, err := stringConfig(cfg, "topic")
	if err != nil {
		return nil, err
	}
	raw, ok := cfg["message"]
	if !ok {
		return nil, fmt.Errorf("missing required config field 'message'")
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if key := optionalString(cfg, "key", ""); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("publish failed: %w", err)
	}
	return map[string]interface{}{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
	}, nil
}

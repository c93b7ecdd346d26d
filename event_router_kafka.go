package proactor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
)

type KafkaEventRouter struct {
	ctx      context.Context
	producer *kafka.Writer
}

func NewKafkaEventRouter(ctx context.Context, brokers string, topic string) *KafkaEventRouter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Balancer:     &kafka.RoundRobin{},
	}
	return &KafkaEventRouter{
		ctx:      ctx,
		producer: writer,
	}
}

func (ker *KafkaEventRouter) Process(key string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	message := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}
	return ker.producer.WriteMessages(ker.ctx, message)
}

func (ker *KafkaEventRouter) Close() error {
	return ker.producer.Close()
}

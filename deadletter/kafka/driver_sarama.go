package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"ima/broker"
	"ima/deadletter"
	"ima/internal/logging"
)

const defaultVersion = "2.1.0"

// Header keys set on every mirrored record.
const (
	HeaderCause       = "ima-cause"
	HeaderMessageID   = "ima-message-id"
	HeaderRedelivered = "ima-redelivered"
)

type driver struct {
	topic string
	p     sarama.SyncProducer
}

// New dials the brokers and returns a synchronous forwarder.
func New(cfg deadletter.Config) (deadletter.Forwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka-deadletter: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka-deadletter: topic is required")
	}
	v := cfg.Version
	if v == "" {
		v = defaultVersion
	}
	ver, err := sarama.ParseKafkaVersion(v)
	if err != nil {
		return nil, fmt.Errorf("kafka-deadletter: %w", err)
	}

	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = "ima-deadletter"
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	sc.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka-deadletter: %w", err)
	}
	return NewWithProducer(p, cfg.Topic), nil
}

// NewWithProducer wraps an existing producer; tests pass sarama mocks here.
func NewWithProducer(p sarama.SyncProducer, topic string) deadletter.Forwarder {
	return &driver{topic: topic, p: p}
}

func (d *driver) message(del broker.Delivery, cause error) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Value: sarama.ByteEncoder(del.Body),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderRedelivered), Value: []byte(strconv.FormatBool(del.Redelivered))},
		},
	}
	if del.MessageID != "" {
		msg.Key = sarama.StringEncoder(del.MessageID)
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(HeaderMessageID), Value: []byte(del.MessageID)})
	}
	if cause != nil {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(HeaderCause), Value: []byte(cause.Error())})
	}
	return msg
}

func (d *driver) Forward(ctx context.Context, del broker.Delivery, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	partition, offset, err := d.p.SendMessage(d.message(del, cause))
	if err != nil {
		return fmt.Errorf("kafka-deadletter: send to %s: %w", d.topic, err)
	}
	logging.L().Info("kafka-deadletter: delivery mirrored",
		"topic", d.topic, "partition", partition, "offset", offset, "message_id", del.MessageID)
	return nil
}

func (d *driver) Close() error {
	return d.p.Close()
}

func init() { deadletter.Register("kafka", New) }

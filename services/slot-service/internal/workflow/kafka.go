package workflow

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "slot.status.changed.v1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTrigger publishes one message per signal, keyed by slot id so all
// signals for a slot land on the same partition.
type KafkaTrigger struct {
	writer messageWriter
	topic  string
}

func NewKafkaTrigger(w messageWriter, topic string) *KafkaTrigger {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaTrigger{writer: w, topic: topic}
}

func (k *KafkaTrigger) Start(ctx context.Context, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return errs.Wrap(err, "marshal workflow signal")
	}
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: k.topic}
	msg := kafka.Message{
		Key:     []byte(sig.SlotID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return errs.Wrapf(err, "publish %s", k.topic)
	}
	return nil
}

func (k *KafkaTrigger) Close() error {
	return k.writer.Close()
}

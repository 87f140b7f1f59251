package kafkax

import (
	"time"

	"github.com/segmentio/kafka-go"
)

type WriterConfig struct {
	Brokers      string
	Topic        string
	WriteTimeout time.Duration
}

// NewWriter returns a synchronous, leader-acked writer keyed by message key,
// or nil when no brokers are configured.
func NewWriter(cfg WriterConfig) *kafka.Writer {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

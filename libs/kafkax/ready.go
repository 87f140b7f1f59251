package kafkax

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/segmentio/kafka-go"
)

var errNoBrokers = errors.New("kafka brokers not configured")

// ReadyCheck passes when any configured broker accepts a TCP connection.
func ReadyCheck(brokers string) func(context.Context) error {
	list := SplitBrokers(brokers)
	return func(ctx context.Context) error {
		if len(list) == 0 {
			return errNoBrokers
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		var lastErr error
		for _, addr := range list {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
				return nil
			}
			lastErr = errs.Wrapf(err, "dial %s", addr)
			if ctx.Err() != nil {
				break
			}
		}
		return lastErr
	}
}

package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// FactSubscriber feeds facts published by the poll service into the relay.
// Messages are handled one at a time on the Start goroutine, so facts reach
// the relay in publish order.
type FactSubscriber struct {
	rdb     *goredis.Client
	channel string
	relay   domain.FactPublisher
}

func NewFactSubscriber(rdb *goredis.Client, channel string, relay domain.FactPublisher) *FactSubscriber {
	return &FactSubscriber{rdb: rdb, channel: channel, relay: relay}
}

// Start subscribes and blocks until ctx is cancelled. It returns an error
// only if the initial subscription fails; go-redis reconnects afterwards.
func (s *FactSubscriber) Start(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	slog.Info("Subscribed to fact channel", "channel", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *FactSubscriber) handle(ctx context.Context, payload string) {
	if err := dispatch(ctx, []byte(payload), s.relay); err != nil {
		slog.Warn("Skipped fact from channel", "channel", s.channel, "error", err)
	}
}

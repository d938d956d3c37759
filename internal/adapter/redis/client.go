package redis

import (
	"context"
	"fmt"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to redisURL and verifies the connection. m may be nil.
// A malformed URL is reported as a retry.PermanentError.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	client := goredis.NewClient(opts)
	if m != nil {
		client.AddHook(&metricsHook{metrics: m})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines, which for this server means requests are piling up.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresCheck pings the order and catalog database.
func PostgresCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping postgres")
		}
		return nil
	}
}

// RedisCheck pings the catalog cache.
func RedisCheck(client goredis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		return nil
	}
}

// KafkaCheck passes when at least one order event broker accepts a
// connection.
func KafkaCheck(brokers []string) CheckFunc {
	return func(ctx context.Context) error {
		var lastErr error
		for _, b := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", b)
			if err != nil {
				lastErr = err
				continue
			}
			_ = conn.Close()
			return nil
		}
		if lastErr == nil {
			return errors.New("no kafka brokers configured")
		}
		return errors.Wrap(lastErr, "dial kafka")
	}
}

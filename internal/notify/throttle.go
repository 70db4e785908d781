package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lifeline/pkg/platform/circuit"
)

// Throttle suppresses repeat sends of the same message within a TTL window.
// It decorates another Notifier; a marker key in Redis is the dedupe record.
// Redis being down degrades to sending, never to dropping; the breaker keeps
// a flapping Redis from warn-logging on every send.
type Throttle struct {
	next    Notifier
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker
}

func NewThrottle(next Notifier, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
		breaker: circuit.New("notify-throttle-redis",
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(2),
		),
	}
}

func (t *Throttle) Send(ctx context.Context, msg Message) error {
	key := msg.ThrottleKey()
	if key == "" || t.client == nil {
		return t.next.Send(ctx, msg)
	}

	fresh, err := t.client.SetNX(ctx, t.redisKey(key), 1, t.ttl).Result()
	if err != nil {
		_, change := t.breaker.RecordFailure()
		if change.Opened {
			t.logger.WarnContext(ctx, "notification throttle unavailable, sending unthrottled",
				"breaker", t.breaker.Name(), "error", err)
		}
		return t.next.Send(ctx, msg)
	}
	if _, change := t.breaker.RecordSuccess(); change.Closed {
		t.logger.InfoContext(ctx, "notification throttle recovered",
			"breaker", t.breaker.Name())
	}

	if !fresh {
		t.logger.DebugContext(ctx, "notification suppressed by throttle", "key", key)
		return nil
	}
	return t.next.Send(ctx, msg)
}

func (t *Throttle) redisKey(key string) string {
	return fmt.Sprintf("notify:sent:%s", key)
}

package counter

import (
	"context"
	"errors"
	"strconv"

	"github.com/develab/btcgate/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const (
	webhookEventsKey    = "gateway:counters:webhook_events"
	checkoutSessionsKey = "gateway:counters:checkout_sessions"
)

// AddWebhookEvent increments the delivery counter for a webhook event type in Redis
func AddWebhookEvent(eventType string) error {
	ctx := context.Background()
	if eventType == "" {
		eventType = "unknown"
	}
	return cache.GetClient().HIncrBy(ctx, webhookEventsKey, eventType, 1).Err()
}

// AddCheckoutSession increments the created checkout session counter in Redis
func AddCheckoutSession() error {
	ctx := context.Background()
	return cache.GetClient().Incr(ctx, checkoutSessionsKey).Err()
}

// WebhookEventCounts returns the per event type delivery counts
func WebhookEventCounts() (map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, webhookEventsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for eventType, raw := range data {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[eventType] = n
	}
	return out, nil
}

// CheckoutSessionCount returns the number of checkout sessions created
func CheckoutSessionCount() (int64, error) {
	ctx := context.Background()
	n, err := cache.GetClient().Get(ctx, checkoutSessionsKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"expense-diary/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	activityChannel = "audit_events"
	activityTTL     = 7 * 24 * time.Hour
	activityMax     = 100
)

// RedisActivityFeed mirrors audit entries into Redis: a capped per-user
// recent list plus a pub/sub channel feeding the SSE stream. Best effort;
// the durable trail lives in Postgres.
type RedisActivityFeed struct {
	client *redis.Client
}

func NewRedisActivityFeed(opts *redis.Options) *RedisActivityFeed {
	return &RedisActivityFeed{client: redis.NewClient(opts)}
}

func (f *RedisActivityFeed) Publish(ctx context.Context, entry models.AuditLogEntry) error {
	if entry.ActionTime.IsZero() {
		entry.ActionTime = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("activity:%d", entry.UserID)
	pipe := f.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, activityMax-1)
	pipe.Expire(ctx, key, activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return f.client.Publish(ctx, activityChannel, data).Err()
}

func (f *RedisActivityFeed) Recent(ctx context.Context, userID int) ([]models.AuditLogEntry, error) {
	vals, err := f.client.LRange(ctx, fmt.Sprintf("activity:%d", userID), 0, activityMax-1).Result()
	if err != nil {
		return nil, err
	}

	var entries []models.AuditLogEntry
	for _, v := range vals {
		var entry models.AuditLogEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *RedisActivityFeed) Subscribe(ctx context.Context) *redis.PubSub {
	return f.client.Subscribe(ctx, activityChannel)
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"homescout/models"
	"homescout/utils"
)

// RedisPublisher publishes each batch as JSON on a pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *utils.Logger
}

// NewRedisPublisher connects to addr and verifies it with a ping.
func NewRedisPublisher(ctx context.Context, addr, password, channel string, logger *utils.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("notify: redis ping %s: %w", addr, err)
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}, nil
}

func (p *RedisPublisher) Send(ctx context.Context, batch models.AlertBatch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("notify: encode batch %s: %w", batch.ID, err)
	}
	receivers, err := p.rdb.Publish(ctx, p.channel, raw).Result()
	if err != nil {
		return fmt.Errorf("notify: publish to %s: %w", p.channel, err)
	}
	p.logger.Info("[notify] Published %s batch %s (%d alerts) to %s, %d subscribers",
		batch.Kind, batch.ID, len(batch.Alerts), p.channel, receivers)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces command lists in Redis.
const redisKeyPrefix = "loomflow:commands:"

// defaultCommandTTL bounds how long undelivered commands survive.
// A command for a run that no longer polls should not linger forever.
const defaultCommandTTL = 24 * time.Hour

// RedisChannel is a command channel backed by a Redis list, one key per
// run. It lets API handlers in other processes control a running
// workflow.
type RedisChannel struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisOption configures a RedisChannel.
type RedisOption func(*RedisChannel)

// WithCommandTTL overrides the expiry applied to the command list.
func WithCommandTTL(ttl time.Duration) RedisOption {
	return func(c *RedisChannel) {
		c.ttl = ttl
	}
}

// NewRedisChannel creates a Redis-backed command channel for a run.
// The client's lifecycle is owned by the caller; Close does not close it.
func NewRedisChannel(client redis.UniversalClient, runID string, opts ...RedisOption) *RedisChannel {
	c := &RedisChannel{
		client: client,
		key:    redisKeyPrefix + runID,
		ttl:    defaultCommandTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send implements Channel.
func (c *RedisChannel) Send(cmd Command) error {
	data, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, c.key, data)
	pipe.Expire(ctx, c.key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push command: %w", err)
	}
	return nil
}

// Fetch implements Channel. It atomically reads and clears the list.
// Entries that fail to decode are dropped rather than wedging the run.
func (c *RedisChannel) Fetch() ([]Command, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := c.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, c.key, 0, -1)
	pipe.Del(ctx, c.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetch commands: %w", err)
	}

	raw := rangeCmd.Val()
	cmds := make([]Command, 0, len(raw))
	for _, entry := range raw {
		cmd, err := Unmarshal([]byte(entry))
		if err != nil {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Close implements Channel. It deletes the run's command list but
// leaves the shared client open.
func (c *RedisChannel) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Del(ctx, c.key).Err()
}

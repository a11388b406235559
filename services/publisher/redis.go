package publisher

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/pkg/errors"
)

// RedisOptions configures a RedisPublisher
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// StreamPrefix names the streams prefix:0 .. prefix:StreamCount-1
	StreamPrefix    string
	StreamCount     int
	StreamMaxLength int
}

// RedisPublisher writes records to sharded Redis streams
type RedisPublisher struct {
	client *redis.Client
	opts   RedisOptions
	log    *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(opts RedisOptions) *RedisPublisher {
	if opts.StreamCount <= 0 {
		opts.StreamCount = 1
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisPublisher{
		client: client,
		opts:   opts,
		log:    logger.ForPublisher(),
	}
}

func (p *RedisPublisher) stream() string {
	return p.opts.StreamPrefix + ":" + strconv.Itoa(rand.IntN(p.opts.StreamCount))
}

// Publish adds message to a random stream shard. The entry holds the message
// under key and the publish time.
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	stream := p.stream()
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			key:            string(message),
			"published_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher(stream, "xadd failed", err)
	}
	return nil
}

// TrimStreams trims every stream under the prefix to StreamMaxLength
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.opts.StreamMaxLength <= 0 {
		return nil
	}

	iter := p.client.Scan(ctx, 0, p.opts.StreamPrefix+":*", 100).Iterator()
	trimmed := 0
	for iter.Next(ctx) {
		stream := iter.Val()
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.opts.StreamMaxLength)).Err(); err != nil {
			return errors.NewPublisher(stream, "xtrim failed", err)
		}
		trimmed++
	}
	if err := iter.Err(); err != nil {
		return errors.NewPublisher(p.opts.StreamPrefix, "scan failed", err)
	}
	p.log.Debug().Int("streams", trimmed).Int("max_length", p.opts.StreamMaxLength).Msg("Streams trimmed")
	return nil
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping failed", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

package statuscheck

import (
    "context"
    "fmt"

    redis "github.com/redis/go-redis/v9"
)

// RedisDatabase probes the Redis instance behind DATABASE_URL. Key names
// stand in for collections.
type RedisDatabase struct {
    client *redis.Client
}

// NewRedisDatabase parses url without connecting; the first probe dials.
func NewRedisDatabase(url string) (*RedisDatabase, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, fmt.Errorf("parse database url: %w", err) }
    return &RedisDatabase{client: redis.NewClient(opt)}, nil
}

func (d *RedisDatabase) Close() error { return d.client.Close() }

func (d *RedisDatabase) Ping(ctx context.Context) error {
    return d.client.Ping(ctx).Err()
}

// Collections scans key names until limit are found or the keyspace ends.
func (d *RedisDatabase) Collections(ctx context.Context, limit int) ([]string, error) {
    names := make([]string, 0, limit)
    var cursor uint64
    for {
        keys, next, err := d.client.Scan(ctx, cursor, "*", int64(limit)).Result()
        if err != nil { return names, err }
        for _, k := range keys {
            if len(names) == limit { return names, nil }
            names = append(names, k)
        }
        if next == 0 || len(names) == limit { return names, nil }
        cursor = next
    }
}

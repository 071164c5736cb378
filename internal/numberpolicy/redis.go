package numberpolicy

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidNumber = errors.New("numberpolicy: number is required")

const blocklistKey = "policy:blocked_numbers"

// RedisBlocklist stores the global blocklist as a Redis set.
//
// SADD/SREM are atomic member-level updates, so concurrent admin edits
// compose instead of overwriting each other. The set key is created lazily
// by the first SADD; there is no read-then-insert window.
type RedisBlocklist struct {
	rdb *redis.Client
}

func NewRedisBlocklist(rdb *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{rdb: rdb}
}

func (b *RedisBlocklist) Add(ctx context.Context, number string) error {
	if number == "" {
		return ErrInvalidNumber
	}
	return b.rdb.SAdd(ctx, blocklistKey, number).Err()
}

func (b *RedisBlocklist) Remove(ctx context.Context, number string) error {
	if number == "" {
		return ErrInvalidNumber
	}
	return b.rdb.SRem(ctx, blocklistKey, number).Err()
}

func (b *RedisBlocklist) Contains(ctx context.Context, number string) (bool, error) {
	return b.rdb.SIsMember(ctx, blocklistKey, number).Result()
}

func (b *RedisBlocklist) List(ctx context.Context) ([]string, error) {
	return b.rdb.SMembers(ctx, blocklistKey).Result()
}

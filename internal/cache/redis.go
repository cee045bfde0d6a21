package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// InFlightGuard は同じゲストへの送信が並行して走らないように短時間の印を管理します
type InFlightGuard interface {
	Acquire(ctx context.Context, guestID int64) (bool, error)
	Release(ctx context.Context, guestID int64) error
}

// RedisGuard はRedisのSETNXで送信中の印を保持します
// 印はTTLで自動的に消えるため、プロセスが途中で落ちても次の実行は妨げません
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

// NewRedisGuard はREDIS_URL形式の接続先からRedisGuardを作成します
// owner は印を付けた実行を識別する値です
func NewRedisGuard(ctx context.Context, url string, ttl time.Duration, owner string) (*RedisGuard, error) {
	if url == "" {
		return nil, errors.New("redis: url is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return newRedisGuard(c, ttl, owner), nil
}

func newRedisGuard(client *redis.Client, ttl time.Duration, owner string) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, owner: owner}
}

func inFlightKey(guestID int64) string {
	return "rsvp:reminder:inflight:" + strconv.FormatInt(guestID, 10)
}

// Acquire は印を付けます。他の実行がすでに印を付けている場合は false を返します
func (g *RedisGuard) Acquire(ctx context.Context, guestID int64) (bool, error) {
	ok, err := g.client.SetNX(ctx, inFlightKey(guestID), g.owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx: %w", err)
	}
	return ok, nil
}

// Release は自分が付けた印だけを消します
func (g *RedisGuard) Release(ctx context.Context, guestID int64) error {
	key := inFlightKey(guestID)
	owner, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis: get: %w", err)
	}
	if owner != g.owner {
		return nil
	}
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

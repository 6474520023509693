// Package guard holds the per-feature "processing" flag: while a feature runs
// for a workspace, a second run of the same feature is refused rather than
// queued.
package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("feature is already processing")

type Guard interface {
	// Acquire sets the flag or returns ErrBusy. The returned release func
	// clears it and is safe to call more than once.
	Acquire(ctx context.Context, workspace, feature string) (release func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisGuard bounds every flag by ttl so a crashed holder cannot keep a
// feature locked forever.
func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisGuard{redis: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, workspace, feature string) (func(), error) {
	key := flagKey(workspace, feature)
	token := newToken()
	ok, err := g.redis.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("processing flag setnx: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Detached from the request context: the flag must clear even
			// when the caller's request was cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.redis, []string{key}, token).Err()
		})
	}, nil
}

// LocalGuard is the in-process variant used when no Redis is configured.
type LocalGuard struct {
	mu    sync.Mutex
	flags map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{flags: map[string]struct{}{}}
}

func (g *LocalGuard) Acquire(_ context.Context, workspace, feature string) (func(), error) {
	key := flagKey(workspace, feature)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.flags[key]; held {
		return nil, ErrBusy
	}
	g.flags[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.flags, key)
			g.mu.Unlock()
		})
	}, nil
}

func flagKey(workspace, feature string) string {
	return fmt.Sprintf("regstudio:processing:%s:%s", workspace, feature)
}

func newToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("tok-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

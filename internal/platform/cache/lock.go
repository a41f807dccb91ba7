package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GenerationLock is a best-effort per-key advisory lock backed by Redis
// SET NX. It exists to stop concurrent cold reads from all paying for the
// same outbound generation call; it is not a correctness guarantee, the
// conditional write at the store is.
type GenerationLock struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewGenerationLock(rdb *redis.Client, prefix string, ttl time.Duration) *GenerationLock {
	return &GenerationLock{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Acquire attempts to take the lock for name. When ok is true the caller
// holds the lock and must call release when done; the TTL covers the case
// where release never runs.
func (l *GenerationLock) Acquire(ctx context.Context, name string) (release func(), ok bool, err error) {
	key := l.prefix + ":" + name
	value := uuid.NewString()

	ok, err = l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("GenerationLock.Acquire %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		current, err := l.rdb.Get(ctx, key).Result()
		if err != nil {
			if err != redis.Nil {
				log.Printf("WARN: GenerationLock release get %s: %v", name, err)
			}
			return
		}
		if current != value {
			// Lock expired and was re-acquired elsewhere.
			return
		}
		if err := l.rdb.Del(ctx, key).Err(); err != nil {
			log.Printf("WARN: GenerationLock release del %s: %v", name, err)
		}
	}
	return release, true, nil
}

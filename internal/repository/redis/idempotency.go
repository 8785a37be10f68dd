package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLockValue    = "LOCK"
	idemResultPrefix = "RES:"
)

type IdemState int

const (
	// IdemAcquired means the caller owns the key and must Complete or Abort.
	IdemAcquired IdemState = iota
	// IdemReplay means an earlier request finished; its payload is returned.
	IdemReplay
	// IdemInProgress means another request holds the key right now.
	IdemInProgress
)

// IdempotencyStore remembers the response of a keyed create request. A key
// holds either a short-lived lock while the first request runs or the
// stored response body.
type IdempotencyStore struct {
	rdb       *redis.Client
	resultTTL time.Duration
	lockTTL   time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, resultTTL, lockTTL time.Duration) *IdempotencyStore {
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return &IdempotencyStore{rdb: rdb, resultTTL: resultTTL, lockTTL: lockTTL}
}

// Begin claims key. The payload is only set for IdemReplay.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (IdemState, string, error) {
	const op = "redis.IdempotencyStore.Begin"

	ok, err := s.rdb.SetNX(ctx, key, idemLockValue, s.lockTTL).Result()
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		return IdemAcquired, "", nil
	}

	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// the lock expired between the two calls
		return IdemInProgress, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}

	if payload, done := strings.CutPrefix(v, idemResultPrefix); done {
		return IdemReplay, payload, nil
	}

	return IdemInProgress, "", nil
}

// Complete stores the response body for later replays.
func (s *IdempotencyStore) Complete(ctx context.Context, key, payload string) error {
	return s.rdb.Set(ctx, key, idemResultPrefix+payload, s.resultTTL).Err()
}

// Abort frees key after a failed request so the client may retry.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

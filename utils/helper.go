package utils

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/shop_backend/config"
)

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func UniqueSlice[T comparable](input []T) []T {
	seen := make(map[T]bool, len(input))
	out := make([]T, 0, len(input))
	for _, v := range input {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// RedisEntityLocker takes short-lived redis locks around whole operations.
// Database row locks stay authoritative; the redis lock keeps concurrent
// requests for the same entity from queueing on the database.
type RedisEntityLocker struct {
	TTL     time.Duration
	Retries int
}

func NewRedisEntityLocker() *RedisEntityLocker {
	return &RedisEntityLocker{TTL: 30 * time.Second, Retries: 50}
}

// Obtain locks every key (sorted, so concurrent callers agree on order) and
// returns a release func. Without redis it returns a no-op release unless
// STRICT_ENTITY_LOCKS is on.
func (l *RedisEntityLocker) Obtain(ctx context.Context, keys ...string) (func(), error) {
	client := config.GetRedisLock()
	if client == nil {
		if config.StrictEntityLocks() {
			return nil, errors.New("entity locks require redis")
		}
		return func() {}, nil
	}

	sorted := UniqueSlice(keys)
	sort.Strings(sorted)

	options := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), l.Retries),
	}
	var held []*redislock.Lock
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(context.Background())
		}
	}
	for _, key := range sorted {
		lock, err := client.Obtain(ctx, "lock:"+key, l.TTL, options)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, ErrorLockNotObtained
			}
			if config.StrictEntityLocks() {
				return nil, err
			}
			// redis hiccup: fall back to database row locks only
			return func() {}, nil
		}
		held = append(held, lock)
	}
	return release, nil
}

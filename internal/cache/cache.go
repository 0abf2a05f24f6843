// Package cache stores short lived values shared across requests:
// course progress snapshots and OAuth state tokens.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when the requested key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Cache is a byte oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns the value and removes the key in one step.
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

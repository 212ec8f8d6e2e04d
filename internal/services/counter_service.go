package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/models"
)

const (
	keyPrefix         = "loginsentry"
	purposePrevSubnet = "prevSubnet"
)

// storeKey builds a namespaced store key for a user. The username is
// hashed so raw account names never appear in a shared cache tier.
func storeKey(purpose, username string) string {
	return keyPrefix + ":" + purpose + ":" + auth.HashUserKey(username)
}

// AttemptCounter accumulates failed login attempts per user and
// classification, with TTL so stale failures age out on their own.
type AttemptCounter struct {
	store  cache.Store
	logger *slog.Logger
}

// NewAttemptCounter creates a new AttemptCounter
func NewAttemptCounter(store cache.Store, logger *slog.Logger) *AttemptCounter {
	return &AttemptCounter{store: store, logger: logger}
}

// RecordFailure atomically increments the counter for the given
// classification and reports whether a notification is due: on every
// multiple of threshold, the post-increment count is returned with
// notify=true. Store failures are non-fatal; a failed increment simply
// never notifies.
func (c *AttemptCounter) RecordFailure(ctx context.Context, username string, class models.FailureClass, threshold int, ttl time.Duration) (count int64, notify bool) {
	count, err := c.store.Incr(ctx, storeKey(string(class), username), ttl)
	if err != nil {
		c.logger.Error("failed to increment attempt counter",
			slog.String("class", string(class)),
			slog.Any("error", err))
		return 0, false
	}

	if threshold > 0 && count%int64(threshold) == 0 {
		return count, true
	}
	return count, false
}

// Clear removes both classification counters for the user. Called on any
// successful login so occasional typos never accumulate into an alert.
func (c *AttemptCounter) Clear(ctx context.Context, username string) error {
	errKnown := c.store.Delete(ctx, storeKey(string(models.FailureKnownLocation), username))
	errNew := c.store.Delete(ctx, storeKey(string(models.FailureUnknownLocation), username))
	return errors.Join(errKnown, errNew)
}

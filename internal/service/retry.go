package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

// atomically runs fn as one unit of work and replays it up to retries more
// times when a concurrent writer won a compare-and-swap. fn must rebuild all
// of its state from tx on every attempt.
func atomically(ctx context.Context, store domain.Store, retries int, logger *zap.Logger, op string, fn func(tx domain.Store) error) error {
	err := store.Atomic(ctx, fn)
	for attempt := 1; attempt <= retries && errors.Is(err, domain.ErrStaleWrite); attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.StorageError(ctxErr)
		}
		logger.Warn("Concurrent modification, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
		)
		err = store.Atomic(ctx, fn)
	}
	return err
}

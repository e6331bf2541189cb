package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"recipehub/internal/model"
)

// maxWriteAttempts bounds read-modify-write loops on version conflicts.
const maxWriteAttempts = 5

// retryOnConflict reruns fn while it fails with model.ErrVersionConflict.
// fn must re-read the state it modifies on every call.
func retryOnConflict(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err := fn()
		if !errors.Is(err, model.ErrVersionConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Printf("[%s] version conflict attempt=%d/%d", op, attempt, maxWriteAttempts)
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, maxWriteAttempts, model.ErrConflict)
}

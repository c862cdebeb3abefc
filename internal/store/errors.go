package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a write violates a unique constraint.
var ErrAlreadyExists = errors.New("already exists")

const uniqueViolation = pq.ErrorCode("23505")

// translateError maps driver errors onto the package's sentinel errors.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pqErr.Constraint)
	}
	return err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// limitArg turns a non-positive limit into NULL, which postgres treats as no limit.
func limitArg(limit int) any {
	if limit < 1 {
		return nil
	}
	return limit
}

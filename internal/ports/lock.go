package ports

import (
	"context"
	"time"
)

// RunLock serializa los runs de trading entre procesos.
type RunLock interface {
	// Acquire toma key durante ttl. Devuelve domain.ErrLockHeld si otro
	// proceso lo tiene. La func devuelta libera el lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

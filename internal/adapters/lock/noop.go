package lock

import (
	"context"
	"time"
)

// Noop es el lock por defecto cuando no hay Redis configurado.
type Noop struct{}

// Acquire siempre tiene éxito.
func (Noop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

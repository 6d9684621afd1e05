package ports

import "context"

// Notifier entrega el resumen de una ejecución. Es fire-and-forget: los
// fallos se loguean en la implementación y nunca se propagan.
type Notifier interface {
	Send(ctx context.Context, text string)
}

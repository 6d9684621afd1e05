// Package notify entrega los informes de cada run: mensajes a Telegram/Discord
// y tablas por consola.
package notify

import (
	"context"
	"log/slog"
)

// Sender es un canal de notificación (Telegram, Discord...).
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Notifier implementa ports.Notifier repartiendo el mensaje entre todos los
// senders. Los fallos se registran y nunca se propagan: una notificación
// perdida no debe tumbar un run que ya ha colocado órdenes.
type Notifier struct {
	senders []Sender
}

// NewNotifier crea un Notifier sobre los senders dados.
func NewNotifier(senders ...Sender) *Notifier {
	return &Notifier{senders: senders}
}

// Senders devuelve cuántos canales hay configurados.
func (n *Notifier) Senders() int {
	return len(n.senders)
}

// Send entrega text a cada sender.
func (n *Notifier) Send(ctx context.Context, text string) {
	if len(n.senders) == 0 {
		slog.Debug("notify: no senders configured, skipping notification")
		return
	}
	for _, s := range n.senders {
		if err := s.Send(ctx, text); err != nil {
			slog.Warn("notify: sender failed", "sender", s.Name(), "err", err)
			continue
		}
		slog.Debug("notify: notification sent", "sender", s.Name())
	}
}
